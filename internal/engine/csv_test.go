package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

func TestCSVRowAllOptionalNull(t *testing.T) {
	l := &license.License{LicenseKey: "K1"}
	row := CSVRow(l, nil, testNow, Options{})
	if len(row) != len(CSVHeader) {
		t.Fatalf("row width %d, header width %d", len(row), len(CSVHeader))
	}
	if row[0] != "K1" {
		t.Errorf("license_key: %q", row[0])
	}
	for i, v := range row {
		if v == "null" || v == "<nil>" {
			t.Errorf("column %s rendered %q", CSVHeader[i], v)
		}
	}
	// batch, agent email, agent name, timestamps all empty
	for _, i := range []int{1, 2, 3, 5, 6, 7, 8} {
		if row[i] != "" {
			t.Errorf("column %s: got %q, want empty", CSVHeader[i], row[i])
		}
	}
	if row[4] != "Unused" {
		t.Errorf("status label: got %q", row[4])
	}
}

func TestCSVRowResolvesAgentName(t *testing.T) {
	lookup := agent.BuildLookup([]*agent.Agent{{Email: "alice@example.com", Name: "Alice"}})
	l := &license.License{
		LicenseKey: "K1",
		AgentEmail: nullStr("alice@example.com"),
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	row := CSVRow(l, lookup, testNow, Options{})
	if row[2] != "alice@example.com" || row[3] != "Alice" {
		t.Fatalf("agent columns: %q %q", row[2], row[3])
	}
	if row[5] != "2024-01-01T00:00:00Z" {
		t.Fatalf("created_at: %q", row[5])
	}

	// Unknown agent keeps the raw email and an empty name.
	l.AgentEmail = nullStr("ghost@example.com")
	row = CSVRow(l, lookup, testNow, Options{})
	if row[2] != "ghost@example.com" || row[3] != "" {
		t.Fatalf("unknown agent: %q %q", row[2], row[3])
	}
}

func TestWriteCSVQuoting(t *testing.T) {
	var sb strings.Builder
	rows := [][]string{
		{`K"1`, "b,1", "", "", "Used", "", "", "", "line\nbreak"},
	}
	if err := WriteCSV(&sb, rows); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, strings.Join(CSVHeader, ",")) {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, `"K""1"`) {
		t.Errorf("embedded quote not doubled: %q", out)
	}
	if !strings.Contains(out, `"b,1"`) {
		t.Errorf("comma field not quoted: %q", out)
	}
	if !strings.Contains(out, "\"line\nbreak\"") {
		t.Errorf("newline field not quoted: %q", out)
	}
}

func TestSplitByAgent(t *testing.T) {
	records := []*license.License{
		{LicenseKey: "A", AgentEmail: nullStr("x@example.com")},
		{LicenseKey: "B"},
		{LicenseKey: "C", AgentEmail: nullStr("x@example.com")},
	}
	got := SplitByAgent(records)
	if len(got) != 2 {
		t.Fatalf("partitions: %d", len(got))
	}
	if len(got["x@example.com"]) != 2 || len(got[UnassignedKey]) != 1 {
		t.Fatalf("partition sizes: %d / %d", len(got["x@example.com"]), len(got[UnassignedKey]))
	}
	if got["x@example.com"][0].LicenseKey != "A" {
		t.Fatal("partition order not preserved")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"alice@example.com": "alice-example-com",
		"Đại Lý #1":         "i-l-1",
		"---":               "licenses",
		"":                  "licenses",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
