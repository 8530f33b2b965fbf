package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
	"github.com/hai-soft/license-admin-api/internal/keygen"
	"github.com/hai-soft/license-admin-api/internal/storage/memstorage"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	reasons []string
}

func (n *recordingNotifier) NotifyChanged(_ context.Context, reason string) error {
	n.reasons = append(n.reasons, reason)
	return nil
}

func newTestService(t *testing.T) (*LicenseService, *memstorage.LicenseRepositoryMock, *recordingNotifier) {
	t.Helper()
	repo := memstorage.NewLicenseRepositoryMock()
	keys, err := keygen.New("alphabet")
	if err != nil {
		t.Fatalf("keygen.New: %v", err)
	}
	notifier := &recordingNotifier{}
	cfg := config.EngineConfig{BulkCreateMax: 100, ExtendDays: 30}
	svc := NewLicenseService(repo, keys, notifier, cfg, zap.NewNop()).
		WithClock(func() time.Time { return testNow })
	return svc, repo, notifier
}

func TestCreateLicensesSingle(t *testing.T) {
	svc, repo, notifier := newTestService(t)

	batchID, keys, err := svc.CreateLicenses(context.Background(), CreateParams{
		BatchName:    "January drop",
		CreatedBy:    "admin@haisoft.vn",
		DurationDays: 90,
	})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}

	lic, err := repo.FindByKey(context.Background(), keys[0])
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if lic.BatchID.String != batchID {
		t.Errorf("batch id = %q, want %q", lic.BatchID.String, batchID)
	}
	wantExpiry := testNow.AddDate(0, 0, 90)
	if !lic.ExpiresAt.Valid || !lic.ExpiresAt.Time.Equal(wantExpiry) {
		t.Errorf("expires_at = %v, want %v", lic.ExpiresAt, wantExpiry)
	}

	logs, _ := repo.ListLogs(context.Background(), 10)
	if len(logs) != 1 || logs[0].Action != license.LogActionCreate {
		t.Errorf("expected one create log entry, got %+v", logs)
	}
	if len(notifier.reasons) != 1 {
		t.Errorf("expected one change notification, got %v", notifier.reasons)
	}
}

func TestCreateLicensesBulk(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, keys, err := svc.CreateLicenses(context.Background(), CreateParams{
		Count:      25,
		BatchName:  "Bulk",
		AgentEmail: "agent@haisoft.vn",
	})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}
	if len(keys) != 25 {
		t.Fatalf("expected 25 keys, got %d", len(keys))
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			t.Fatalf("duplicate generated key %q", k)
		}
		seen[k] = true
	}

	lic, err := repo.FindByKey(context.Background(), keys[0])
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if lic.AgentEmail.String != "agent@haisoft.vn" || !lic.AssignedAt.Valid {
		t.Errorf("expected license pre-assigned to agent, got %+v", lic)
	}

	logs, _ := repo.ListLogs(context.Background(), 10)
	if len(logs) != 1 || logs[0].Action != license.LogActionBulkCreate {
		t.Errorf("expected one bulk_create log entry, got %+v", logs)
	}
}

func TestCreateLicensesSchemeOverride(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, keys, err := svc.CreateLicenses(context.Background(), CreateParams{
		Count:     2,
		BatchName: "Prefixed",
		Scheme:    "prefixed",
	})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "HAISOFT-") {
			t.Errorf("key %q does not carry the prefixed scheme", k)
		}
	}

	_, _, err = svc.CreateLicenses(context.Background(), CreateParams{
		BatchName: "Bad scheme",
		Scheme:    "rot13",
	})
	if err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestCreateLicensesOverLimit(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.CreateLicenses(context.Background(), CreateParams{
		Count:     101,
		BatchName: "Too big",
	})
	if err == nil {
		t.Fatal("expected error for quantity over limit")
	}
}

func TestAssignLicenses(t *testing.T) {
	svc, repo, notifier := newTestService(t)

	_, _, err := svc.CreateLicenses(context.Background(), CreateParams{Count: 3, BatchName: "Assignable"})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}

	all, _ := repo.List(context.Background())
	ids := []uuid.UUID{all[0].ID, all[1].ID}

	affected, err := svc.AssignLicenses(context.Background(), ids, "agent@haisoft.vn")
	if err != nil {
		t.Fatalf("AssignLicenses: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected = %d, want 2", affected)
	}

	lic, _ := repo.FindByID(context.Background(), ids[0])
	if lic.AgentEmail.String != "agent@haisoft.vn" {
		t.Errorf("agent_email = %q, want agent@haisoft.vn", lic.AgentEmail.String)
	}

	// create + assign
	if len(notifier.reasons) != 2 || notifier.reasons[1] != license.LogActionAssign {
		t.Errorf("notifications = %v", notifier.reasons)
	}
}

func TestExtendLicenseClearsStampedStatus(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, keys, err := svc.CreateLicenses(context.Background(), CreateParams{BatchName: "Extendable", DurationDays: 1})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}
	lic, _ := repo.FindByKey(context.Background(), keys[0])
	if err := repo.MarkExpired(context.Background(), lic.ID); err != nil {
		t.Fatalf("MarkExpired: %v", err)
	}

	if err := svc.ExtendLicense(context.Background(), lic.ID); err != nil {
		t.Fatalf("ExtendLicense: %v", err)
	}

	extended, _ := repo.FindByID(context.Background(), lic.ID)
	if extended.Status.Valid && extended.Status.String == "expired" {
		t.Error("extension should clear the stamped expired status")
	}
	wantExpiry := testNow.AddDate(0, 0, 1).Add(30 * 24 * time.Hour)
	if !extended.ExpiresAt.Time.Equal(wantExpiry) {
		t.Errorf("expires_at = %v, want %v", extended.ExpiresAt.Time, wantExpiry)
	}
}

func TestRedeemLicense(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, keys, err := svc.CreateLicenses(context.Background(), CreateParams{BatchName: "Redeemable", DurationDays: 30})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}

	lic, err := svc.RedeemLicense(context.Background(), keys[0])
	if err != nil {
		t.Fatalf("RedeemLicense: %v", err)
	}
	if !lic.IsUsed.Bool || !lic.UsedAt.Valid {
		t.Errorf("expected license marked used, got %+v", lic)
	}

	if _, err := svc.RedeemLicense(context.Background(), keys[0]); !errors.Is(err, license.ErrAlreadyUsed) {
		t.Errorf("second redeem error = %v, want ErrAlreadyUsed", err)
	}
	_ = repo
}

func TestRedeemExpiredLicense(t *testing.T) {
	svc, repo, _ := newTestService(t)

	lapsed := testNow.Add(-time.Hour)
	_, keys, err := svc.CreateLicenses(context.Background(), CreateParams{BatchName: "Stale", ExpiresAt: &lapsed})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}

	if _, err := svc.RedeemLicense(context.Background(), keys[0]); !errors.Is(err, license.ErrExpired) {
		t.Errorf("redeem error = %v, want ErrExpired", err)
	}
	_ = repo
}

func TestDeleteLicense(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, keys, err := svc.CreateLicenses(context.Background(), CreateParams{BatchName: "Disposable"})
	if err != nil {
		t.Fatalf("CreateLicenses: %v", err)
	}
	lic, _ := repo.FindByKey(context.Background(), keys[0])

	if err := svc.DeleteLicense(context.Background(), lic.ID); err != nil {
		t.Fatalf("DeleteLicense: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), lic.ID); !errors.Is(err, license.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
