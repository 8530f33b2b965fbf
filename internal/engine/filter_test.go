package engine

import (
	"testing"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

func sampleRecords() []*license.License {
	return []*license.License{
		{
			LicenseKey: "K1",
			BatchID:    nullStr("B1"),
			AgentEmail: nullStr("alice@example.com"),
			IsUsed:     nullBool(true),
			CreatedAt:  time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			LicenseKey: "K2",
			BatchID:    nullStr("B1"),
			CreatedAt:  time.Date(2023, 12, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			LicenseKey: "K3",
			AgentEmail: nullStr("bob@example.com"),
			ExpiresAt:  nullTime(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)),
			CreatedAt:  time.Date(2023, 12, 20, 10, 0, 0, 0, time.UTC),
		},
	}
}

func keysOf(records []*license.License) []string {
	out := make([]string, len(records))
	for i, l := range records {
		out[i] = l.LicenseKey
	}
	return out
}

func TestApplyIdentityFilter(t *testing.T) {
	records := sampleRecords()
	got := Apply(records, Filter{Agent: FilterAll, Batch: FilterAll, Status: FilterAll}, testNow, Options{})
	if len(got) != len(records) {
		t.Fatalf("identity filter dropped records: got %d, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Fatalf("identity filter reordered records at %d", i)
		}
	}
}

func TestApplyAgentDimension(t *testing.T) {
	records := sampleRecords()

	got := Apply(records, Filter{Agent: "alice@example.com"}, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "K1" {
		t.Fatalf("agent filter: got %v", keysOf(got))
	}

	got = Apply(records, Filter{Agent: UnassignedKey}, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "K2" {
		t.Fatalf("unassigned sentinel: got %v", keysOf(got))
	}
}

func TestApplyStatusDimension(t *testing.T) {
	records := sampleRecords()
	got := Apply(records, Filter{Status: string(StatusExpired)}, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "K3" {
		t.Fatalf("status filter: got %v", keysOf(got))
	}
}

func TestApplyKeyword(t *testing.T) {
	records := sampleRecords()

	got := Apply(records, Filter{Keyword: "K2"}, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "K2" {
		t.Fatalf("keyword by key: got %v", keysOf(got))
	}

	// Matches across agent email too, case-insensitively.
	got = Apply(records, Filter{Keyword: "BOB@"}, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "K3" {
		t.Fatalf("keyword by email: got %v", keysOf(got))
	}
}

func TestApplyDateRangeInclusiveEndOfDay(t *testing.T) {
	day := time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)
	records := []*license.License{
		{LicenseKey: "SAME", CreatedAt: time.Date(2023, 12, 15, 23, 59, 59, 0, time.UTC)},
		{LicenseKey: "NEXT", CreatedAt: time.Date(2023, 12, 16, 0, 0, 1, 0, time.UTC)},
	}
	got := Apply(records, Filter{DateField: DateFieldCreated, DateTo: day}, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "SAME" {
		t.Fatalf("DateTo must cover the whole day: got %v", keysOf(got))
	}
}

func TestApplyDateRangeExcludesMissingField(t *testing.T) {
	records := []*license.License{
		{LicenseKey: "HAS", ExpiresAt: nullTime(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), CreatedAt: testNow},
		{LicenseKey: "NONE", CreatedAt: testNow},
	}
	f := Filter{
		DateField: DateFieldExpires,
		DateFrom:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	got := Apply(records, f, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "HAS" {
		t.Fatalf("null dates must fail an active bound: got %v", keysOf(got))
	}
}

func TestApplyConjunction(t *testing.T) {
	records := sampleRecords()
	f := Filter{Batch: "B1", Agent: "alice@example.com"}
	got := Apply(records, f, testNow, Options{})
	if len(got) != 1 || got[0].LicenseKey != "K1" {
		t.Fatalf("dimensions must AND: got %v", keysOf(got))
	}
}
