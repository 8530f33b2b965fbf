package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
	"github.com/hai-soft/license-admin-api/internal/engine"
	"github.com/hai-soft/license-admin-api/internal/ierr"
	"github.com/hai-soft/license-admin-api/internal/keygen"
)

// Notifier publishes a change signal after every successful mutation so
// snapshot holders refetch.
type Notifier interface {
	NotifyChanged(ctx context.Context, reason string) error
}

type noopNotifier struct{}

func (noopNotifier) NotifyChanged(context.Context, string) error { return nil }

// NoopNotifier is used where change notification is not wired (tests, CLI).
var NoopNotifier Notifier = noopNotifier{}

type LicenseService struct {
	repo     license.Repository
	keys     keygen.Generator
	notifier Notifier
	cfg      config.EngineConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewLicenseService(repo license.Repository, keys keygen.Generator, notifier Notifier, cfg config.EngineConfig, logger *zap.Logger) *LicenseService {
	if notifier == nil {
		notifier = NoopNotifier
	}
	return &LicenseService{
		repo:     repo,
		keys:     keys,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.Named("LicenseService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock. Only tests use this.
func (s *LicenseService) WithClock(now func() time.Time) *LicenseService {
	s.now = now
	return s
}

type CreateParams struct {
	// LicenseKey is used verbatim when set; otherwise a key is generated.
	LicenseKey string
	// Scheme overrides the configured key scheme for this batch.
	Scheme       string
	Count        int
	BatchName    string
	CreatedBy    string
	AgentEmail   string
	ExpiresAt    *time.Time
	DurationDays int
}

// CreateLicenses creates the batch row and then its member licenses, one
// for single mode or Count for bulk mode. It returns the created batch id
// and keys.
func (s *LicenseService) CreateLicenses(ctx context.Context, p CreateParams) (string, []string, error) {
	count := p.Count
	if count <= 0 {
		count = 1
	}
	limit := s.cfg.BulkCreateMax
	if limit <= 0 {
		limit = 5000
	}
	if count > limit {
		return "", nil, fmt.Errorf("%w: quantity %d exceeds limit %d", ierr.ErrValidation, count, limit)
	}
	if p.LicenseKey != "" && count > 1 {
		return "", nil, fmt.Errorf("%w: a manual key only creates a single license", ierr.ErrValidation)
	}
	if strings.TrimSpace(p.BatchName) == "" {
		return "", nil, fmt.Errorf("%w: batch name is required", ierr.ErrValidation)
	}

	gen := s.keys
	if p.Scheme != "" && p.Scheme != gen.Scheme() {
		override, err := keygen.New(p.Scheme)
		if err != nil {
			return "", nil, fmt.Errorf("%w: unknown key scheme %q", ierr.ErrValidation, p.Scheme)
		}
		gen = override
	}

	batchID := keygen.NewBatchID()
	s.logger.Info("Creating licenses",
		zap.Int("count", count),
		zap.String("batch_id", batchID),
		zap.String("scheme", gen.Scheme()),
	)

	batch := &license.Batch{
		BatchID:   batchID,
		Name:      strings.TrimSpace(p.BatchName),
		CreatedBy: p.CreatedBy,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		s.logger.Error("Failed to create batch via repository", zap.Error(err))
		return "", nil, fmt.Errorf("repository error during batch creation: %w", err)
	}

	now := s.now()
	keys := make([]string, 0, count)
	licenses := make([]*license.License, 0, count)
	for i := 0; i < count; i++ {
		key := strings.TrimSpace(p.LicenseKey)
		if key == "" {
			generated, err := gen.NewKey()
			if err != nil {
				return "", nil, fmt.Errorf("key generation failed: %w", err)
			}
			key = generated
		}

		// Status stays NULL at creation so derivation stays in charge;
		// only the expiry sweep ever stamps it.
		lic := &license.License{
			LicenseKey: key,
			BatchID:    sql.NullString{String: batchID, Valid: true},
			IsUsed:     sql.NullBool{Bool: false, Valid: true},
		}
		if p.AgentEmail != "" {
			lic.AgentEmail = sql.NullString{String: p.AgentEmail, Valid: true}
			lic.AssignedAt = sql.NullTime{Time: now, Valid: true}
		}
		if p.ExpiresAt != nil {
			lic.ExpiresAt = sql.NullTime{Time: *p.ExpiresAt, Valid: true}
		} else if p.DurationDays > 0 {
			lic.ExpiresAt = sql.NullTime{Time: now.AddDate(0, 0, p.DurationDays), Valid: true}
			lic.DurationDays = sql.NullInt32{Int32: int32(p.DurationDays), Valid: true}
		}
		licenses = append(licenses, lic)
		keys = append(keys, key)
	}

	if err := s.repo.Create(ctx, licenses); err != nil {
		s.logger.Error("Failed to create licenses via repository", zap.Error(err))
		return "", nil, fmt.Errorf("repository error during license creation: %w", err)
	}

	action := license.LogActionCreate
	message := fmt.Sprintf("Created license %s (batch %s)", keys[0], batchID)
	if count > 1 {
		action = license.LogActionBulkCreate
		message = fmt.Sprintf("Created %d licenses (batch %s)", count, batchID)
	}
	if p.AgentEmail != "" {
		message += " for " + p.AgentEmail
	}
	s.appendLog(ctx, action, message)
	s.notifyChanged(ctx, action)

	s.logger.Info("Licenses created successfully", zap.String("batch_id", batchID), zap.Int("count", count))
	return batchID, keys, nil
}

// AssignLicenses assigns the selected licenses to an agent. An empty agent
// email unassigns them.
func (s *LicenseService) AssignLicenses(ctx context.Context, ids []uuid.UUID, agentEmail string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no licenses selected", ierr.ErrValidation)
	}

	affected, err := s.repo.AssignByIDs(ctx, ids, agentEmail, s.now())
	if err != nil {
		return 0, fmt.Errorf("repository error during assignment: %w", err)
	}

	target := agentEmail
	if target == "" {
		target = "(unassigned)"
	}
	s.appendLog(ctx, license.LogActionAssign, fmt.Sprintf("Assigned %d licenses to %s", affected, target))
	s.notifyChanged(ctx, license.LogActionAssign)

	s.logger.Info("Licenses assigned", zap.Int64("affected", affected), zap.String("agent", target))
	return affected, nil
}

// AssignBatch assigns every license of a batch to an agent.
func (s *LicenseService) AssignBatch(ctx context.Context, batchID, agentEmail string) (int64, error) {
	if batchID == "" {
		return 0, fmt.Errorf("%w: batch id is required", ierr.ErrValidation)
	}

	affected, err := s.repo.AssignByBatch(ctx, batchID, agentEmail, s.now())
	if err != nil {
		return 0, fmt.Errorf("repository error during batch assignment: %w", err)
	}

	target := agentEmail
	if target == "" {
		target = "(unassigned)"
	}
	s.appendLog(ctx, license.LogActionAssign, fmt.Sprintf("Assigned batch %s (%d licenses) to %s", batchID, affected, target))
	s.notifyChanged(ctx, license.LogActionAssign)
	return affected, nil
}

// ExtendLicense pushes the expiry out by the configured number of days
// (30 unless overridden) and clears any stamped "expired" status so
// derivation takes over again.
func (s *LicenseService) ExtendLicense(ctx context.Context, id uuid.UUID) error {
	days := s.cfg.ExtendDays
	if days <= 0 {
		days = 30
	}

	lic, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.ExtendExpiry(ctx, id, time.Duration(days)*24*time.Hour, s.now()); err != nil {
		s.logger.Error("Failed to extend license", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("repository error during extension: %w", err)
	}

	s.appendLog(ctx, license.LogActionExtend, fmt.Sprintf("Extended %s by %d days", lic.LicenseKey, days))
	s.notifyChanged(ctx, license.LogActionExtend)
	return nil
}

// RedeemLicense marks a key as used on behalf of the desktop software.
// Already-used and expired keys are rejected with sentinel errors.
func (s *LicenseService) RedeemLicense(ctx context.Context, key string) (*license.License, error) {
	lic, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch engine.Derive(lic, now, engine.Options{}) {
	case engine.StatusExpired:
		return nil, license.ErrExpired
	case engine.StatusUsed:
		return nil, license.ErrAlreadyUsed
	}

	if err := s.repo.MarkUsed(ctx, lic.ID, now); err != nil {
		s.logger.Error("Failed to mark license used", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("repository error during redeem: %w", err)
	}

	lic.IsUsed = sql.NullBool{Bool: true, Valid: true}
	lic.UsedAt = sql.NullTime{Time: now, Valid: true}

	s.appendLog(ctx, license.LogActionRedeem, fmt.Sprintf("Redeemed license %s", lic.LicenseKey))
	s.notifyChanged(ctx, license.LogActionRedeem)

	s.logger.Info("License redeemed", zap.String("key", lic.LicenseKey))
	return lic, nil
}

// DeleteLicense removes a license permanently.
func (s *LicenseService) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	lic, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete license", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("repository error during deletion: %w", err)
	}

	s.appendLog(ctx, license.LogActionDelete, fmt.Sprintf("Deleted license %s", lic.LicenseKey))
	s.notifyChanged(ctx, license.LogActionDelete)
	return nil
}

// appendLog writes the audit entry for a mutation. Audit failure is logged
// but never fails the mutation itself.
func (s *LicenseService) appendLog(ctx context.Context, action, message string) {
	entry := &license.Log{Action: action, Message: message}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *LicenseService) notifyChanged(ctx context.Context, reason string) {
	if err := s.notifier.NotifyChanged(ctx, reason); err != nil {
		s.logger.Warn("Change notification failed", zap.String("reason", reason), zap.Error(err))
	}
}
