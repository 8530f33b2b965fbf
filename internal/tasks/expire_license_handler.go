package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
	"github.com/hai-soft/license-admin-api/internal/service"
)

// LicenseExpireHandler stamps an explicit "expired" status onto records
// whose expiry has passed. The status engine already derives expiry at read
// time; the sweep makes it durable so exports and external consumers see it
// even without derivation.
type LicenseExpireHandler struct {
	repo     license.Repository
	notifier service.Notifier
	logger   *zap.Logger
}

func NewLicenseExpireHandler(repo license.Repository, notifier service.Notifier, logger *zap.Logger) *LicenseExpireHandler {
	if notifier == nil {
		notifier = service.NoopNotifier
	}
	return &LicenseExpireHandler{
		repo:     repo,
		notifier: notifier,
		logger:   logger.Named("LicenseExpireHandler"),
	}
}

func (h *LicenseExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeLicenseExpire {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p ExpireLicensePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for license expiration task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	h.logger.Info("Processing license expiration sweep...")

	now := time.Now().UTC()
	all, err := h.repo.List(ctx)
	if err != nil {
		h.logger.Error("Failed to list licenses for expiration sweep", zap.Error(err))
		return fmt.Errorf("repository error listing licenses: %w", err)
	}

	updatedCount := 0
	for _, lic := range all {
		if !lic.ExpiresAt.Valid || !lic.ExpiresAt.Time.UTC().Before(now) {
			continue
		}
		if lic.Status.Valid && lic.Status.String == "expired" {
			continue
		}

		h.logger.Info("Found expired license, stamping status",
			zap.String("license_id", lic.ID.String()),
			zap.String("license_key", lic.LicenseKey),
			zap.Time("expires_at", lic.ExpiresAt.Time),
		)

		if errUpdate := h.repo.MarkExpired(ctx, lic.ID); errUpdate != nil {
			h.logger.Error("Failed to stamp expired status",
				zap.String("license_id", lic.ID.String()),
				zap.Error(errUpdate),
			)
		} else {
			updatedCount++
		}
	}

	if updatedCount > 0 {
		if err := h.notifier.NotifyChanged(ctx, "expire_sweep"); err != nil {
			h.logger.Warn("Change notification failed after sweep", zap.Error(err))
		}
	}

	h.logger.Info("License expiration sweep finished", zap.Int("processed_licenses", len(all)), zap.Int("updated_to_expired", updatedCount))
	return nil
}
