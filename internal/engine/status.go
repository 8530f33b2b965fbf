// Package engine holds the pure license status, filter, aggregation, and
// CSV projection logic. Everything in this package is deterministic given a
// snapshot and a clock reading: no storage access, no locking, no side
// effects. Callers derive fresh output whenever a new snapshot arrives.
package engine

import (
	"strings"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

// Status is the derived classification of a license record.
type Status string

const (
	StatusUsed     Status = "used"
	StatusUnused   Status = "unused"
	StatusExpired  Status = "expired"
	StatusAssigned Status = "assigned"
	StatusExpiring Status = "expiring"
)

// StatusLabels maps a status to its human-facing label for tables and CSV.
var StatusLabels = map[Status]string{
	StatusUsed:     "Used",
	StatusUnused:   "Unused",
	StatusExpired:  "Expired",
	StatusAssigned: "Assigned",
	StatusExpiring: "Expiring soon",
}

// DefaultSoonWindow is how far ahead of now a key still counts as
// "expiring soon". The boundary is inclusive.
const DefaultSoonWindow = 7 * 24 * time.Hour

// Options selects which optional statuses a view exposes. Views that only
// know used/unused/expired leave Expiring and Assigned off; the precedence
// order never changes, disabled rules are simply skipped.
type Options struct {
	Expiring   bool
	Assigned   bool
	SoonWindow time.Duration
}

func (o Options) soonWindow() time.Duration {
	if o.SoonWindow > 0 {
		return o.SoonWindow
	}
	return DefaultSoonWindow
}

// Derive maps a record to exactly one status. Precedence, highest first:
//
//  1. explicit storage-side status (used/expired/unused, case-insensitive)
//  2. expires_at in the past -> expired, regardless of is_used
//  3. expires_at within the soon window -> expiring (when enabled)
//  4. is_used or used_at set -> used
//  5. agent assigned -> assigned (when enabled)
//  6. unused
//
// The expiry-before-used ordering is deliberate: an already-used key whose
// expiry has passed reads as expired.
func Derive(l *license.License, now time.Time, opts Options) Status {
	if l.Status.Valid {
		switch strings.ToLower(strings.TrimSpace(l.Status.String)) {
		case "used":
			return StatusUsed
		case "expired":
			return StatusExpired
		case "unused":
			return StatusUnused
		}
	}

	if l.ExpiresAt.Valid {
		if l.ExpiresAt.Time.Before(now) {
			return StatusExpired
		}
		if opts.Expiring && !l.ExpiresAt.Time.After(now.Add(opts.soonWindow())) {
			return StatusExpiring
		}
	}

	if (l.IsUsed.Valid && l.IsUsed.Bool) || l.UsedAt.Valid {
		return StatusUsed
	}

	if opts.Assigned && agentKeyOf(l) != UnassignedKey {
		return StatusAssigned
	}

	return StatusUnused
}

// UnassignedKey is the sentinel agent key for records without an agent.
const UnassignedKey = "unassigned"

func agentKeyOf(l *license.License) string {
	if l.AgentEmail.Valid && strings.TrimSpace(l.AgentEmail.String) != "" {
		return l.AgentEmail.String
	}
	return UnassignedKey
}

// ParseTimestamp parses a raw date string leniently, accepting RFC 3339 and
// plain calendar dates. Unparseable input reports ok=false and is treated as
// absent by every consumer, never as an error.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
