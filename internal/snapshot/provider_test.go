package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

type fakeSource struct {
	licenses []*license.License
	batches  []*license.Batch
	logs     []*license.Log
	err      error
	calls    int
}

func (s *fakeSource) List(context.Context) ([]*license.License, error) {
	s.calls++
	return s.licenses, s.err
}

func (s *fakeSource) ListBatches(context.Context) ([]*license.Batch, error) {
	return s.batches, nil
}

func (s *fakeSource) ListLogs(context.Context, int) ([]*license.Log, error) {
	return s.logs, nil
}

type fakeAgentSource struct {
	agents []*agent.Agent
}

func (s *fakeAgentSource) List(context.Context) ([]*agent.Agent, error) {
	return s.agents, nil
}

type fakeSubscriber struct {
	signals chan struct{}
}

func (s *fakeSubscriber) Subscribe(context.Context) (<-chan struct{}, error) {
	return s.signals, nil
}

func TestGetBeforeFirstRefresh(t *testing.T) {
	p := NewProvider(&fakeSource{}, &fakeAgentSource{}, &fakeSubscriber{}, zap.NewNop())

	snap := p.Get()
	if snap == nil {
		t.Fatal("Get returned nil before first refresh")
	}
	if len(snap.Licenses) != 0 {
		t.Errorf("expected empty snapshot, got %d licenses", len(snap.Licenses))
	}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	source := &fakeSource{
		licenses: []*license.License{
			{LicenseKey: "K1", BatchID: sql.NullString{String: "B1", Valid: true}},
		},
		batches: []*license.Batch{{BatchID: "B1", Name: "First"}},
	}
	agents := &fakeAgentSource{agents: []*agent.Agent{{Email: "a@haisoft.vn", Name: "A"}}}
	p := NewProvider(source, agents, &fakeSubscriber{}, zap.NewNop())

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := p.Get()
	if len(snap.Licenses) != 1 || snap.Licenses[0].LicenseKey != "K1" {
		t.Errorf("unexpected licenses: %+v", snap.Licenses)
	}
	if len(snap.Batches) != 1 || len(snap.Agents) != 1 {
		t.Errorf("batches/agents not carried: %+v", snap)
	}
	if snap.TakenAt.IsZero() {
		t.Error("TakenAt not stamped")
	}
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSource{
		licenses: []*license.License{{LicenseKey: "K1"}},
	}
	p := NewProvider(source, &fakeAgentSource{}, &fakeSubscriber{}, zap.NewNop())

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	source.err = errors.New("connection reset")
	if err := p.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	snap := p.Get()
	if len(snap.Licenses) != 1 || snap.Licenses[0].LicenseKey != "K1" {
		t.Errorf("previous snapshot not preserved: %+v", snap.Licenses)
	}
}

func TestRunRefreshesOnNotification(t *testing.T) {
	source := &fakeSource{licenses: []*license.License{{LicenseKey: "K1"}}}
	sub := &fakeSubscriber{signals: make(chan struct{}, 1)}
	p := NewProvider(source, &fakeAgentSource{}, sub, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	sub.signals <- struct{}{}

	deadline := time.After(2 * time.Second)
	for p.current.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("snapshot was not refreshed after notification")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	if source.calls == 0 {
		t.Error("source was never queried")
	}
}
