package engine

import (
	"testing"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, testNow, Options{})
	if s.Total != 0 {
		t.Errorf("total: got %d", s.Total)
	}
	if s.UsageRate != 0 {
		t.Errorf("usageRate on empty set must be 0, got %d", s.UsageRate)
	}
}

func TestSummarizeCounts(t *testing.T) {
	records := []*license.License{
		{LicenseKey: "A", IsUsed: nullBool(true), AgentEmail: nullStr("x@example.com")},
		{LicenseKey: "B", ExpiresAt: nullTime(testNow.Add(-time.Hour))},
		{LicenseKey: "C", ExpiresAt: nullTime(testNow.Add(24 * time.Hour))},
		{LicenseKey: "D"},
	}
	s := Summarize(records, testNow, Options{})
	if s.Total != 4 || s.Used != 1 || s.Expired != 1 || s.ExpiringSoon != 1 || s.Unused != 1 {
		t.Fatalf("unexpected partition: %+v", s)
	}
	if s.Assigned != 1 || s.Unassigned != 3 {
		t.Fatalf("agent partition: %+v", s)
	}
	if s.UsageRate != 25 {
		t.Fatalf("usageRate: got %d, want 25", s.UsageRate)
	}
}

func TestTopAgentsOrderAndTruncation(t *testing.T) {
	var records []*license.License
	add := func(email string, n int) {
		for i := 0; i < n; i++ {
			records = append(records, &license.License{LicenseKey: email + "-key", AgentEmail: nullStr(email)})
		}
	}
	add("a@example.com", 10)
	add("b@example.com", 3)
	add("c@example.com", 7)

	top := TopAgents(records, testNow, Options{}, 2)
	if len(top) != 2 {
		t.Fatalf("got %d entries, want 2", len(top))
	}
	if top[0].Key != "a@example.com" || top[1].Key != "c@example.com" {
		t.Fatalf("order: got [%s %s], want [a c]", top[0].Key, top[1].Key)
	}
}

func TestGroupByAgentEmpty(t *testing.T) {
	if got := GroupByAgent(nil, testNow, Options{}); len(got) != 0 {
		t.Fatalf("expected empty map, got %d entries", len(got))
	}
}

func TestGroupByBatchSkipsUnbatched(t *testing.T) {
	records := []*license.License{
		{LicenseKey: "A", BatchID: nullStr("B1"), IsUsed: nullBool(true), AgentEmail: nullStr("x@example.com")},
		{LicenseKey: "B", BatchID: nullStr("B1"), ExpiresAt: nullTime(testNow.Add(-time.Hour))},
		{LicenseKey: "C"},
	}
	got := GroupByBatch(records, testNow, Options{})
	if len(got) != 1 {
		t.Fatalf("unbatched record leaked into grouping: %d keys", len(got))
	}
	stats := got["B1"]
	if stats == nil {
		t.Fatal("missing B1 bucket")
	}
	if stats.Total != 2 || stats.Used != 1 || stats.Expired != 1 || stats.Unassigned != 1 {
		t.Fatalf("B1 stats: %+v", stats)
	}
	if agents := stats.AgentList(); len(agents) != 1 || agents[0] != "x@example.com" {
		t.Fatalf("B1 agents: %v", agents)
	}
}

func TestBucketByDaySortedAscending(t *testing.T) {
	records := []*license.License{
		{LicenseKey: "A", CreatedAt: time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)},
		{LicenseKey: "B", CreatedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
		{LicenseKey: "C", CreatedAt: time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)},
		{LicenseKey: "D"}, // no created_at, excluded
	}
	got := BucketByDay(records)
	if len(got) != 2 {
		t.Fatalf("got %d buckets, want 2", len(got))
	}
	if got[0].Date != "2024-01-01" || got[0].Count != 2 {
		t.Errorf("first bucket: %+v", got[0])
	}
	if got[1].Date != "2024-01-03" || got[1].Count != 1 {
		t.Errorf("second bucket: %+v", got[1])
	}
}
