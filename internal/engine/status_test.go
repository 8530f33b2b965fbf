package engine

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func nullBool(b bool) sql.NullBool {
	return sql.NullBool{Bool: b, Valid: true}
}

func TestDeriveExplicitStatusWins(t *testing.T) {
	// Explicit storage-side "used" overrides a past expiry.
	l := &license.License{
		LicenseKey: "K1",
		Status:     nullStr("USED"),
		ExpiresAt:  nullTime(testNow.Add(-48 * time.Hour)),
	}
	if got := Derive(l, testNow, Options{}); got != StatusUsed {
		t.Fatalf("explicit status ignored: got %q, want %q", got, StatusUsed)
	}
}

func TestDeriveExpiryBeatsUsed(t *testing.T) {
	l := &license.License{
		LicenseKey: "K1",
		IsUsed:     nullBool(true),
		ExpiresAt:  nullTime(testNow.Add(-time.Hour)),
	}
	if got := Derive(l, testNow, Options{}); got != StatusExpired {
		t.Fatalf("got %q, want %q (expiry precedes used)", got, StatusExpired)
	}
}

func TestDeriveExpiringWindow(t *testing.T) {
	within := &license.License{ExpiresAt: nullTime(testNow.Add(3 * 24 * time.Hour))}
	boundary := &license.License{ExpiresAt: nullTime(testNow.Add(7 * 24 * time.Hour))}
	beyond := &license.License{ExpiresAt: nullTime(testNow.Add(8 * 24 * time.Hour))}

	opts := Options{Expiring: true}
	if got := Derive(within, testNow, opts); got != StatusExpiring {
		t.Errorf("within window: got %q", got)
	}
	if got := Derive(boundary, testNow, opts); got != StatusExpiring {
		t.Errorf("7-day boundary should be inclusive: got %q", got)
	}
	if got := Derive(beyond, testNow, opts); got != StatusUnused {
		t.Errorf("beyond window: got %q", got)
	}

	// Views without the expiring status fall through to unused.
	if got := Derive(within, testNow, Options{}); got != StatusUnused {
		t.Errorf("expiring disabled: got %q", got)
	}
}

func TestDeriveAssignedOnlyWhenEnabled(t *testing.T) {
	l := &license.License{AgentEmail: nullStr("agent@example.com")}
	if got := Derive(l, testNow, Options{Assigned: true}); got != StatusAssigned {
		t.Errorf("assigned enabled: got %q", got)
	}
	if got := Derive(l, testNow, Options{}); got != StatusUnused {
		t.Errorf("assigned disabled: got %q", got)
	}
}

func TestDeriveUsedAtImpliesUsed(t *testing.T) {
	l := &license.License{UsedAt: nullTime(testNow.Add(-time.Hour))}
	if got := Derive(l, testNow, Options{}); got != StatusUsed {
		t.Fatalf("got %q, want %q", got, StatusUsed)
	}
}

func TestDeriveIsPure(t *testing.T) {
	l := &license.License{
		LicenseKey: "K1",
		IsUsed:     nullBool(true),
		ExpiresAt:  nullTime(testNow.Add(30 * 24 * time.Hour)),
	}
	first := Derive(l, testNow, Options{Expiring: true})
	for i := 0; i < 10; i++ {
		if got := Derive(l, testNow, Options{Expiring: true}); got != first {
			t.Fatalf("derivation not stable: %q then %q", first, got)
		}
	}
}

func TestDeriveEndToEndScenario(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []*license.License{
		{LicenseKey: "K1", IsUsed: nullBool(true), ExpiresAt: nullTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))},
		{LicenseKey: "K2", IsUsed: nullBool(false)},
		{LicenseKey: "K3", IsUsed: nullBool(false), ExpiresAt: nullTime(time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC))},
	}
	want := []Status{StatusExpired, StatusUnused, StatusUnused}
	for i, l := range records {
		if got := Derive(l, now, Options{}); got != want[i] {
			t.Errorf("%s: got %q, want %q", l.LicenseKey, got, want[i])
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-05-01", true},
		{"2024-05-01T10:30:00Z", true},
		{"2024-05-01 10:30:00", true},
		{"not-a-date", false},
		{"", false},
		{"   ", false},
	}
	for _, tc := range cases {
		if _, ok := ParseTimestamp(tc.in); ok != tc.ok {
			t.Errorf("ParseTimestamp(%q): ok=%v, want %v", tc.in, ok, tc.ok)
		}
	}
}
