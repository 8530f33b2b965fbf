package engine

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/agent"
	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

// CSVHeader is the fixed, stable export column set.
var CSVHeader = []string{
	"license_key",
	"batch_id",
	"agent_email",
	"agent_name",
	"status",
	"created_at",
	"expires_at",
	"used_at",
	"assigned_at",
}

// CSVRow projects a record onto CSVHeader. Missing optional fields become
// empty strings, never a literal "null".
func CSVRow(l *license.License, agents agent.Lookup, now time.Time, opts Options) []string {
	agentEmail := ""
	agentName := ""
	if l.AgentEmail.Valid && l.AgentEmail.String != "" {
		agentEmail = l.AgentEmail.String
		if a, ok := agents[agentEmail]; ok {
			agentName = a.Name
		}
	}
	return []string{
		l.LicenseKey,
		nullableString(l.BatchID.Valid, l.BatchID.String),
		agentEmail,
		agentName,
		StatusLabels[Derive(l, now, opts)],
		isoOrEmpty(true, l.CreatedAt),
		isoOrEmpty(l.ExpiresAt.Valid, l.ExpiresAt.Time),
		isoOrEmpty(l.UsedAt.Valid, l.UsedAt.Time),
		isoOrEmpty(l.AssignedAt.Valid, l.AssignedAt.Time),
	}
}

func nullableString(valid bool, s string) string {
	if !valid {
		return ""
	}
	return s
}

func isoOrEmpty(valid bool, t time.Time) string {
	if !valid || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteCSV writes a header row plus rows with RFC 4180 quoting. An empty
// row list still writes the header so the document stays well formed.
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// SplitByAgent partitions records by agent key for the per-agent export
// mode. Partition order inside each bucket follows input order.
func SplitByAgent(records []*license.License) map[string][]*license.License {
	out := make(map[string][]*license.License)
	for _, l := range records {
		key := agentKeyOf(l)
		out[key] = append(out[key], l)
	}
	return out
}

var filenameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeFilename lowercases and strips anything outside [a-z0-9],
// collapsing runs into single dashes. Falls back to "licenses" when
// nothing survives.
func SanitizeFilename(name string) string {
	s := filenameUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "licenses"
	}
	return s
}
