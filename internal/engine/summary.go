package engine

import (
	"math"
	"sort"
	"time"

	"github.com/hai-soft/license-admin-api/internal/domain/license"
)

// Summary holds the dashboard counters. Used/unused/expired/expiring
// partition the set by derived status; assigned/unassigned partition it
// independently by agent presence.
type Summary struct {
	Total        int `json:"total"`
	Used         int `json:"used"`
	Unused       int `json:"unused"`
	Expired      int `json:"expired"`
	ExpiringSoon int `json:"expiringSoon"`
	Assigned     int `json:"assigned"`
	Unassigned   int `json:"unassigned"`
	UsageRate    int `json:"usageRate"`
}

// Summarize computes the counters in one pass. UsageRate is the rounded
// percentage of used keys, 0 for an empty set.
func Summarize(records []*license.License, now time.Time, opts Options) Summary {
	opts.Expiring = true

	var s Summary
	s.Total = len(records)
	for _, l := range records {
		switch Derive(l, now, opts) {
		case StatusUsed:
			s.Used++
		case StatusExpired:
			s.Expired++
		case StatusExpiring:
			s.ExpiringSoon++
		default:
			s.Unused++
		}
		if agentKeyOf(l) != UnassignedKey {
			s.Assigned++
		} else {
			s.Unassigned++
		}
	}
	if s.Total > 0 {
		s.UsageRate = int(math.Round(float64(s.Used) / float64(s.Total) * 100))
	}
	return s
}

// AgentStats is the per-agent breakdown. Key is the agent email or the
// "unassigned" sentinel.
type AgentStats struct {
	Key     string `json:"agentKey"`
	Total   int    `json:"total"`
	Used    int    `json:"used"`
	Expired int    `json:"expired"`
}

// GroupByAgent buckets records per agent key.
func GroupByAgent(records []*license.License, now time.Time, opts Options) map[string]*AgentStats {
	out := make(map[string]*AgentStats)
	for _, l := range records {
		key := agentKeyOf(l)
		stats, ok := out[key]
		if !ok {
			stats = &AgentStats{Key: key}
			out[key] = stats
		}
		stats.Total++
		switch Derive(l, now, opts) {
		case StatusUsed:
			stats.Used++
		case StatusExpired:
			stats.Expired++
		}
	}
	return out
}

// DefaultTopAgents is the top-N cutoff for "top agents" views.
const DefaultTopAgents = 5

// TopAgents returns the per-agent breakdown sorted by total descending,
// truncated to n entries (DefaultTopAgents when n <= 0). Ties break on the
// agent key so output is deterministic.
func TopAgents(records []*license.License, now time.Time, opts Options, n int) []*AgentStats {
	if n <= 0 {
		n = DefaultTopAgents
	}
	grouped := GroupByAgent(records, now, opts)
	out := make([]*AgentStats, 0, len(grouped))
	for _, stats := range grouped {
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// BatchStats is the per-batch breakdown. Unbatched records are excluded
// from the grouping entirely, never folded into a synthetic key.
type BatchStats struct {
	BatchID    string              `json:"batchId"`
	Total      int                 `json:"total"`
	Used       int                 `json:"used"`
	Expired    int                 `json:"expired"`
	Unassigned int                 `json:"unassigned"`
	Agents     map[string]struct{} `json:"-"`
}

// AgentList returns the distinct assigned agents of the batch, sorted.
func (b *BatchStats) AgentList() []string {
	out := make([]string, 0, len(b.Agents))
	for a := range b.Agents {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// GroupByBatch buckets records that carry a batch id.
func GroupByBatch(records []*license.License, now time.Time, opts Options) map[string]*BatchStats {
	out := make(map[string]*BatchStats)
	for _, l := range records {
		if !l.BatchID.Valid || l.BatchID.String == "" {
			continue
		}
		stats, ok := out[l.BatchID.String]
		if !ok {
			stats = &BatchStats{
				BatchID: l.BatchID.String,
				Agents:  make(map[string]struct{}),
			}
			out[l.BatchID.String] = stats
		}
		stats.Total++
		switch Derive(l, now, opts) {
		case StatusUsed:
			stats.Used++
		case StatusExpired:
			stats.Expired++
		}
		if key := agentKeyOf(l); key == UnassignedKey {
			stats.Unassigned++
		} else {
			stats.Agents[key] = struct{}{}
		}
	}
	return out
}

// DayCount is one point of the creations-per-day time series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// BucketByDay counts records per UTC calendar day of created_at, ascending.
// Records without a usable created_at are skipped.
func BucketByDay(records []*license.License) []DayCount {
	byDay := make(map[string]int)
	for _, l := range records {
		if l.CreatedAt.IsZero() {
			continue
		}
		byDay[l.CreatedAt.UTC().Format("2006-01-02")]++
	}
	out := make([]DayCount, 0, len(byDay))
	for date, count := range byDay {
		out = append(out, DayCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
