package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

const licenseColumns = `
            id, license_key, batch_id, agent_email, status, is_used,
            duration_days, created_at, expires_at, used_at, assigned_at`

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, licenses []*license.License) error {
	if len(licenses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
        INSERT INTO licenses (
            license_key, batch_id, agent_email, status, is_used,
            duration_days, expires_at, assigned_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	for _, lic := range licenses {
		batch.Queue(query,
			lic.LicenseKey,
			lic.BatchID,
			lic.AgentEmail,
			lic.Status,
			lic.IsUsed,
			lic.DurationDays,
			lic.ExpiresAt,
			lic.AssignedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, lic := range licenses {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				r.logger.Warn("Attempted to create license with duplicate key",
					zap.String("license_key", lic.LicenseKey),
					zap.String("constraint", pgErr.ConstraintName),
				)
				return fmt.Errorf("%w: %s", license.ErrDuplicateKey, lic.LicenseKey)
			}
			r.logger.Error("Failed to create license in database", zap.Error(err))
			return fmt.Errorf("database error on create license: %w", err)
		}
	}

	r.logger.Info("Licenses created successfully", zap.Int("count", len(licenses)))
	return nil
}

func (r *LicenseRepository) CreateBatch(ctx context.Context, b *license.Batch) error {
	query := `
        INSERT INTO license_batches (batch_id, name, created_by)
        VALUES ($1, $2, $3)
    `
	if _, err := r.db.Exec(ctx, query, b.BatchID, b.Name, b.CreatedBy); err != nil {
		r.logger.Error("Failed to create license batch", zap.String("batch_id", b.BatchID), zap.Error(err))
		return fmt.Errorf("database error on create batch: %w", err)
	}
	return nil
}

func (r *LicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE id = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, id))
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*license.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE license_key = $1`
	return r.scanLicense(r.db.QueryRow(ctx, query, key))
}

func (r *LicenseRepository) List(ctx context.Context) ([]*license.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query list of licenses", zap.Error(err))
		return nil, fmt.Errorf("database error on list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)
	for rows.Next() {
		var lic license.License
		err := rows.Scan(
			&lic.ID,
			&lic.LicenseKey,
			&lic.BatchID,
			&lic.AgentEmail,
			&lic.Status,
			&lic.IsUsed,
			&lic.DurationDays,
			&lic.CreatedAt,
			&lic.ExpiresAt,
			&lic.UsedAt,
			&lic.AssignedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan license row during list", zap.Error(err))
			return nil, fmt.Errorf("database scan error during list: %w", err)
		}
		licenses = append(licenses, &lic)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, fmt.Errorf("database iteration error on list licenses: %w", err)
	}

	return licenses, nil
}

func (r *LicenseRepository) ListBatches(ctx context.Context) ([]*license.Batch, error) {
	query := `
        SELECT batch_id, name, created_by, created_at
        FROM license_batches
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("database error on list batches: %w", err)
	}
	defer rows.Close()

	batches := make([]*license.Batch, 0)
	for rows.Next() {
		var b license.Batch
		if err := rows.Scan(&b.BatchID, &b.Name, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("database scan error during batch list: %w", err)
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

func (r *LicenseRepository) AssignByIDs(ctx context.Context, ids []uuid.UUID, agentEmail string, at time.Time) (int64, error) {
	query := `
        UPDATE licenses SET agent_email = $1, assigned_at = $2
        WHERE id = ANY($3)
    `
	cmdTag, err := r.db.Exec(ctx, query, nilIfEmpty(agentEmail), at, ids)
	if err != nil {
		r.logger.Error("Failed to assign licenses", zap.Int("ids", len(ids)), zap.Error(err))
		return 0, fmt.Errorf("database error on assign licenses: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

func (r *LicenseRepository) AssignByBatch(ctx context.Context, batchID string, agentEmail string, at time.Time) (int64, error) {
	query := `
        UPDATE licenses SET agent_email = $1, assigned_at = $2
        WHERE batch_id = $3
    `
	cmdTag, err := r.db.Exec(ctx, query, nilIfEmpty(agentEmail), at, batchID)
	if err != nil {
		r.logger.Error("Failed to assign batch", zap.String("batch_id", batchID), zap.Error(err))
		return 0, fmt.Errorf("database error on assign batch: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

func (r *LicenseRepository) ExtendExpiry(ctx context.Context, id uuid.UUID, by time.Duration, now time.Time) error {
	// Keys that never expired or already lapsed restart from now; live keys
	// extend from their current expiry.
	query := `
        UPDATE licenses SET
            status = NULL,
            expires_at = CASE
                WHEN expires_at IS NULL OR expires_at < $2 THEN $2 + $3::interval
                ELSE expires_at + $3::interval
            END
        WHERE id = $1
    `
	interval := fmt.Sprintf("%d seconds", int64(by.Seconds()))
	cmdTag, err := r.db.Exec(ctx, query, id, now, interval)
	if err != nil {
		r.logger.Error("Failed to extend license expiry", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on extend license: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func (r *LicenseRepository) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE licenses SET is_used = TRUE, used_at = $2 WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		r.logger.Error("Failed to mark license used", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on mark used: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func (r *LicenseRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE licenses SET status = 'expired' WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark license expired", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on mark expired: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func (r *LicenseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete license", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on delete license: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func (r *LicenseRepository) AppendLog(ctx context.Context, entry *license.Log) error {
	query := `INSERT INTO license_logs (action, message) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, entry.Action, entry.Message); err != nil {
		r.logger.Error("Failed to append license log", zap.String("action", entry.Action), zap.Error(err))
		return fmt.Errorf("database error on append log: %w", err)
	}
	return nil
}

func (r *LicenseRepository) ListLogs(ctx context.Context, limit int) ([]*license.Log, error) {
	query := `
        SELECT id, action, message, created_at
        FROM license_logs
        ORDER BY created_at DESC
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("database error on list logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*license.Log, 0, limit)
	for rows.Next() {
		var l license.Log
		if err := rows.Scan(&l.ID, &l.Action, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("database scan error during log list: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(
		&lic.ID,
		&lic.LicenseKey,
		&lic.BatchID,
		&lic.AgentEmail,
		&lic.Status,
		&lic.IsUsed,
		&lic.DurationDays,
		&lic.CreatedAt,
		&lic.ExpiresAt,
		&lic.UsedAt,
		&lic.AssignedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}
		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return &lic, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
