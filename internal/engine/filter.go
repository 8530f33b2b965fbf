package engine

import (
	"strings"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

// FilterAll is the always-pass value for the agent, batch, and status
// dimensions.
const FilterAll = "all"

// DateField selects which timestamp the date range applies to.
type DateField string

const (
	DateFieldCreated DateField = "created_at"
	DateFieldExpires DateField = "expires_at"
)

// Filter is a multi-field filter specification. Every field is independently
// optional; zero values mean "no constraint on this dimension". A record
// passes only if it satisfies every active dimension.
type Filter struct {
	Agent     string
	Batch     string
	Status    string
	Keyword   string
	DateField DateField
	DateFrom  time.Time
	DateTo    time.Time
}

// Apply evaluates the filter over records, preserving relative order. The
// result shares backing records with the input; it is never re-sorted.
func Apply(records []*license.License, f Filter, now time.Time, opts Options) []*license.License {
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))
	out := make([]*license.License, 0, len(records))
	for _, l := range records {
		if matches(l, f, keyword, now, opts) {
			out = append(out, l)
		}
	}
	return out
}

func matches(l *license.License, f Filter, keyword string, now time.Time, opts Options) bool {
	if f.Agent != "" && f.Agent != FilterAll {
		if agentKeyOf(l) != f.Agent {
			return false
		}
	}

	if f.Batch != "" && f.Batch != FilterAll {
		batch := ""
		if l.BatchID.Valid {
			batch = l.BatchID.String
		}
		if batch != f.Batch {
			return false
		}
	}

	if f.Status != "" && f.Status != FilterAll {
		if Derive(l, now, opts) != Status(f.Status) {
			return false
		}
	}

	if keyword != "" {
		haystack := strings.ToLower(strings.Join([]string{
			l.LicenseKey,
			l.AgentEmail.String,
			l.BatchID.String,
		}, " "))
		if !strings.Contains(haystack, keyword) {
			return false
		}
	}

	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		field, ok := dateFieldValue(l, f.DateField)
		if !ok {
			// A record without a value on the active date field cannot be
			// judged inside the range; it is excluded, not included.
			return false
		}
		if !f.DateFrom.IsZero() && field.Before(f.DateFrom) {
			return false
		}
		if !f.DateTo.IsZero() {
			// DateTo is a calendar day; the bound covers the entire day.
			inclusiveEnd := f.DateTo.Add(24*time.Hour - time.Millisecond)
			if field.After(inclusiveEnd) {
				return false
			}
		}
	}

	return true
}

func dateFieldValue(l *license.License, field DateField) (time.Time, bool) {
	switch field {
	case DateFieldExpires:
		if l.ExpiresAt.Valid {
			return l.ExpiresAt.Time, true
		}
		return time.Time{}, false
	default:
		if l.CreatedAt.IsZero() {
			return time.Time{}, false
		}
		return l.CreatedAt, true
	}
}
