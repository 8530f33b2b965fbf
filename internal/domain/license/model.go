package license

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("license not found")
	ErrDuplicateKey = errors.New("license key already exists")
	ErrUpdateFailed = errors.New("license update failed")
	ErrAlreadyUsed  = errors.New("license already redeemed")
	ErrExpired      = errors.New("license expired")
)

// License is a single issued key with its usage, expiry, and assignment
// state. Optional columns are nullable so the status engine can distinguish
// "absent" from zero values.
type License struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	LicenseKey   string         `db:"license_key" json:"license_key"`
	BatchID      sql.NullString `db:"batch_id" json:"batch_id,omitempty"`
	AgentEmail   sql.NullString `db:"agent_email" json:"agent_email,omitempty"`
	Status       sql.NullString `db:"status" json:"status,omitempty"`
	IsUsed       sql.NullBool   `db:"is_used" json:"is_used,omitempty"`
	DurationDays sql.NullInt32  `db:"duration_days" json:"duration_days,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	ExpiresAt    sql.NullTime   `db:"expires_at" json:"expires_at,omitempty"`
	UsedAt       sql.NullTime   `db:"used_at" json:"used_at,omitempty"`
	AssignedAt   sql.NullTime   `db:"assigned_at" json:"assigned_at,omitempty"`
}

// RecordID is the stable per-record identity used for selection and export:
// the row id when present, the key itself otherwise.
func (l *License) RecordID() string {
	if l.ID != uuid.Nil {
		return l.ID.String()
	}
	return l.LicenseKey
}

// Batch groups licenses created together. Never mutated after creation.
type Batch struct {
	BatchID   string    `db:"batch_id" json:"batch_id"`
	Name      string    `db:"name" json:"name"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Log is an append-only audit entry written as a side effect of every
// mutating operation. Entries are never updated or deleted.
type Log struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	LogActionCreate     = "create"
	LogActionBulkCreate = "bulk_create"
	LogActionAssign     = "assign"
	LogActionExtend     = "extend"
	LogActionRedeem     = "redeem"
	LogActionDelete     = "delete"
)
