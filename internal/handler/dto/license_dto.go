package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
	"github.com/hai-soft/license-admin-api/internal/engine"
)

type CreateLicenseRequest struct {
	LicenseKey   string     `json:"license_key"`
	Scheme       string     `json:"scheme" binding:"omitempty,oneof=uuid alphabet prefixed"`
	Count        int        `json:"count" binding:"omitempty,gte=1"`
	BatchName    string     `json:"batch_name" binding:"required"`
	AgentEmail   string     `json:"agent_email" binding:"omitempty,email"`
	DurationDays int        `json:"duration_days" binding:"omitempty,gte=1"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type CreateLicenseResponse struct {
	BatchID string   `json:"batch_id"`
	Count   int      `json:"count"`
	Keys    []string `json:"keys"`
}

type LicenseResponse struct {
	ID         uuid.UUID  `json:"id"`
	LicenseKey string     `json:"license_key"`
	BatchID    *string    `json:"batch_id,omitempty"`
	AgentEmail *string    `json:"agent_email,omitempty"`
	AgentName  string     `json:"agent_name,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
}

// NewLicenseResponse projects a record with its status derived at request
// time. The stored status column never leaks out directly.
func NewLicenseResponse(lic *license.License, agents agent.Lookup, now time.Time, opts engine.Options) *LicenseResponse {
	resp := &LicenseResponse{
		ID:         lic.ID,
		LicenseKey: lic.LicenseKey,
		Status:     string(engine.Derive(lic, now, opts)),
		CreatedAt:  lic.CreatedAt,
	}
	if lic.BatchID.Valid {
		resp.BatchID = &lic.BatchID.String
	}
	if lic.AgentEmail.Valid && lic.AgentEmail.String != "" {
		resp.AgentEmail = &lic.AgentEmail.String
		resp.AgentName = agents.DisplayName(lic.AgentEmail.String)
	}
	if lic.ExpiresAt.Valid {
		resp.ExpiresAt = &lic.ExpiresAt.Time
	}
	if lic.UsedAt.Valid {
		resp.UsedAt = &lic.UsedAt.Time
	}
	if lic.AssignedAt.Valid {
		resp.AssignedAt = &lic.AssignedAt.Time
	}
	return resp
}

type ListLicensesRequest struct {
	Agent     string `form:"agent,default=all"`
	Batch     string `form:"batch,default=all"`
	Status    string `form:"status,default=all" binding:"omitempty,oneof=all used unused expired assigned expiring"`
	Keyword   string `form:"q"`
	DateField string `form:"date_field,default=created_at" binding:"omitempty,oneof=created_at expires_at"`
	DateFrom  string `form:"date_from"`
	DateTo    string `form:"date_to"`
	Limit     int    `form:"limit,default=50" binding:"omitempty,gte=0"`
	Offset    int    `form:"offset,default=0" binding:"omitempty,gte=0"`
}

type PaginatedLicenseResponse struct {
	Licenses   []*LicenseResponse `json:"licenses"`
	TotalCount int                `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

type AssignLicensesRequest struct {
	LicenseIDs []uuid.UUID `json:"license_ids" binding:"required,min=1"`
	AgentEmail string      `json:"agent_email" binding:"omitempty,email"`
}

type AssignBatchRequest struct {
	BatchID    string `json:"batch_id" binding:"required"`
	AgentEmail string `json:"agent_email" binding:"omitempty,email"`
}

type AssignResponse struct {
	Affected int64 `json:"affected"`
}

type RedeemLicenseRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
}

type RedeemLicenseResponse struct {
	LicenseKey string     `json:"license_key"`
	UsedAt     time.Time  `json:"used_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type ExportRequest struct {
	Mode      string   `json:"mode" binding:"omitempty,oneof=filtered selected split"`
	IDs       []string `json:"ids"`
	Agent     string   `json:"agent"`
	Batch     string   `json:"batch"`
	Status    string   `json:"status" binding:"omitempty,oneof=all used unused expired assigned expiring"`
	Keyword   string   `json:"q"`
	DateField string   `json:"date_field" binding:"omitempty,oneof=created_at expires_at"`
	DateFrom  string   `json:"date_from"`
	DateTo    string   `json:"date_to"`
	Filename  string   `json:"filename"`
}

type AgentResponse struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BatchResponse struct {
	BatchID   string    `json:"batch_id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
