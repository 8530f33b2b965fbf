// Package snapshot decouples the pure status/filter/aggregation engine from
// refresh policy. The provider holds the latest full snapshot of the record
// set; change notifications trigger a complete refetch, never an in-place
// patch.
package snapshot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

const logTailLimit = 100

// Source fetches the full current record set from storage.
type Source interface {
	List(ctx context.Context) ([]*license.License, error)
	ListBatches(ctx context.Context) ([]*license.Batch, error)
	ListLogs(ctx context.Context, limit int) ([]*license.Log, error)
}

// AgentSource fetches the agent set, kept separate because agents live in
// their own repository.
type AgentSource interface {
	List(ctx context.Context) ([]*agent.Agent, error)
}

// Subscriber yields a signal per change notification.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

type Provider struct {
	source  Source
	agents  AgentSource
	sub     Subscriber
	logger  *zap.Logger
	current atomic.Pointer[license.Snapshot]
}

func NewProvider(source Source, agents AgentSource, sub Subscriber, logger *zap.Logger) *Provider {
	return &Provider{
		source: source,
		agents: agents,
		sub:    sub,
		logger: logger.Named("SnapshotProvider"),
	}
}

// Get returns the current snapshot. It is never nil after the first
// successful Refresh; callers before that get an empty snapshot.
func (p *Provider) Get() *license.Snapshot {
	if snap := p.current.Load(); snap != nil {
		return snap
	}
	return &license.Snapshot{}
}

// Refresh refetches everything and atomically replaces the snapshot.
func (p *Provider) Refresh(ctx context.Context) error {
	licenses, err := p.source.List(ctx)
	if err != nil {
		return fmt.Errorf("snapshot refresh: licenses: %w", err)
	}
	batches, err := p.source.ListBatches(ctx)
	if err != nil {
		return fmt.Errorf("snapshot refresh: batches: %w", err)
	}
	logs, err := p.source.ListLogs(ctx, logTailLimit)
	if err != nil {
		return fmt.Errorf("snapshot refresh: logs: %w", err)
	}
	agents, err := p.agents.List(ctx)
	if err != nil {
		return fmt.Errorf("snapshot refresh: agents: %w", err)
	}

	snap := &license.Snapshot{
		Licenses: licenses,
		Batches:  batches,
		Agents:   agents,
		Logs:     logs,
		TakenAt:  time.Now().UTC(),
	}
	p.current.Store(snap)

	p.logger.Debug("Snapshot refreshed",
		zap.Int("licenses", len(licenses)),
		zap.Int("batches", len(batches)),
		zap.Int("agents", len(agents)),
	)
	return nil
}

// Run subscribes to change notifications and refreshes on each one until
// ctx is canceled. A failed refresh keeps the previous snapshot; the next
// notification retries.
func (p *Provider) Run(ctx context.Context) error {
	signals, err := p.sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("snapshot subscription failed: %w", err)
	}

	p.logger.Info("Snapshot provider subscribed to change notifications")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			if err := p.Refresh(ctx); err != nil {
				p.logger.Error("Snapshot refresh after change notification failed", zap.Error(err))
			}
		}
	}
}
