package license

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
)

type Repository interface {
	Create(ctx context.Context, licenses []*License) error
	CreateBatch(ctx context.Context, batch *Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)
	FindByKey(ctx context.Context, key string) (*License, error)
	List(ctx context.Context) ([]*License, error)
	ListBatches(ctx context.Context) ([]*Batch, error)
	AssignByIDs(ctx context.Context, ids []uuid.UUID, agentEmail string, at time.Time) (int64, error)
	AssignByBatch(ctx context.Context, batchID string, agentEmail string, at time.Time) (int64, error)
	ExtendExpiry(ctx context.Context, id uuid.UUID, by time.Duration, now time.Time) error
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	AppendLog(ctx context.Context, entry *Log) error
	ListLogs(ctx context.Context, limit int) ([]*Log, error)
}

// Snapshot is the full in-memory copy of the record set at a point in time.
// Read paths consume whole snapshots and re-derive output; there is no
// incremental patching.
type Snapshot struct {
	Licenses []*License
	Batches  []*Batch
	Agents   []*agent.Agent
	Logs     []*Log
	TakenAt  time.Time
}
