package memstorage

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

// LicenseRepositoryMock is an in-memory license.Repository for tests and
// local development without PostgreSQL.
type LicenseRepositoryMock struct {
	mu       sync.RWMutex
	licenses map[uuid.UUID]*license.License
	batches  map[string]*license.Batch
	logs     []*license.Log
}

func NewLicenseRepositoryMock() *LicenseRepositoryMock {
	return &LicenseRepositoryMock{
		licenses: make(map[uuid.UUID]*license.License),
		batches:  make(map[string]*license.Batch),
	}
}

var _ license.Repository = (*LicenseRepositoryMock)(nil)

func (r *LicenseRepositoryMock) Create(ctx context.Context, licenses []*license.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lic := range licenses {
		for _, existing := range r.licenses {
			if existing.LicenseKey == lic.LicenseKey {
				return license.ErrDuplicateKey
			}
		}
	}
	for _, lic := range licenses {
		cp := *lic
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		lic.ID = cp.ID
		lic.CreatedAt = cp.CreatedAt
		r.licenses[cp.ID] = &cp
	}
	return nil
}

func (r *LicenseRepositoryMock) CreateBatch(ctx context.Context, b *license.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *b
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.batches[cp.BatchID] = &cp
	return nil
}

func (r *LicenseRepositoryMock) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lic, ok := r.licenses[id]
	if !ok {
		return nil, license.ErrNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *LicenseRepositoryMock) FindByKey(ctx context.Context, key string) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lic := range r.licenses {
		if lic.LicenseKey == key {
			cp := *lic
			return &cp, nil
		}
	}
	return nil, license.ErrNotFound
}

func (r *LicenseRepositoryMock) List(ctx context.Context) ([]*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*license.License, 0, len(r.licenses))
	for _, lic := range r.licenses {
		cp := *lic
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].LicenseKey < out[j].LicenseKey
	})
	return out, nil
}

func (r *LicenseRepositoryMock) ListBatches(ctx context.Context) ([]*license.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*license.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *LicenseRepositoryMock) AssignByIDs(ctx context.Context, ids []uuid.UUID, agentEmail string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for _, id := range ids {
		lic, ok := r.licenses[id]
		if !ok {
			continue
		}
		lic.AgentEmail = sql.NullString{String: agentEmail, Valid: agentEmail != ""}
		lic.AssignedAt = sql.NullTime{Time: at, Valid: true}
		affected++
	}
	return affected, nil
}

func (r *LicenseRepositoryMock) AssignByBatch(ctx context.Context, batchID string, agentEmail string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for _, lic := range r.licenses {
		if lic.BatchID.Valid && lic.BatchID.String == batchID {
			lic.AgentEmail = sql.NullString{String: agentEmail, Valid: agentEmail != ""}
			lic.AssignedAt = sql.NullTime{Time: at, Valid: true}
			affected++
		}
	}
	return affected, nil
}

func (r *LicenseRepositoryMock) ExtendExpiry(ctx context.Context, id uuid.UUID, by time.Duration, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	base := now
	if lic.ExpiresAt.Valid && lic.ExpiresAt.Time.After(now) {
		base = lic.ExpiresAt.Time
	}
	lic.ExpiresAt = sql.NullTime{Time: base.Add(by), Valid: true}
	lic.Status = sql.NullString{}
	return nil
}

func (r *LicenseRepositoryMock) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	lic.IsUsed = sql.NullBool{Bool: true, Valid: true}
	lic.UsedAt = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (r *LicenseRepositoryMock) MarkExpired(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[id]
	if !ok {
		return license.ErrNotFound
	}
	lic.Status = sql.NullString{String: "expired", Valid: true}
	return nil
}

func (r *LicenseRepositoryMock) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.licenses[id]; !ok {
		return license.ErrNotFound
	}
	delete(r.licenses, id)
	return nil
}

func (r *LicenseRepositoryMock) AppendLog(ctx context.Context, entry *license.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *LicenseRepositoryMock) ListLogs(ctx context.Context, limit int) ([]*license.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*license.Log, 0, limit)
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.logs[i]
		out = append(out, &cp)
	}
	return out, nil
}
