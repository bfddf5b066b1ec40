// Package digest summarises recent assessments for the periodic statistics
// digest and delivers it to a webhook.
package digest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/store"
)

// maxTopStates caps Stats.TopStates.
const maxTopStates = 5

// StateCount is the number of leads operating in a state.
type StateCount struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

// Stats holds the digest figures for one period.
type Stats struct {
	TotalAssessments int                    `json:"total_assessments"`
	AverageScore     float64                `json:"average_score"`
	TopStates        []StateCount           `json:"top_states"`
	TierCounts       map[model.RiskTier]int `json:"tier_counts"`
	PeriodStart      time.Time              `json:"period_start"`
	PeriodEnd        time.Time              `json:"period_end"`
}

// Source is the subset of store.Store the collector reads from.
type Source interface {
	ListAssessments(ctx context.Context, filter store.AssessmentFilter) ([]model.AssessmentResult, error)
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
}

// Collector gathers digest statistics from the store.
type Collector struct {
	src Source
}

// NewCollector creates a new statistics collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

// Collect computes statistics for the window [now-lookback, now). A
// non-positive lookback covers all time.
func (c *Collector) Collect(ctx context.Context, now time.Time, lookback time.Duration) (*Stats, error) {
	now = now.UTC()
	stats := &Stats{
		TopStates:  []StateCount{},
		TierCounts: map[model.RiskTier]int{},
		PeriodEnd:  now,
	}
	if lookback > 0 {
		stats.PeriodStart = now.Add(-lookback)
	}

	assessments, err := c.src.ListAssessments(ctx, store.AssessmentFilter{
		Since: stats.PeriodStart,
		Until: now,
	})
	if err != nil {
		return nil, eris.Wrap(err, "digest: list assessments")
	}

	stats.TotalAssessments = len(assessments)
	var total float64
	for _, a := range assessments {
		total += a.OverallPercentage
		stats.TierCounts[a.OverallRiskTier]++
	}
	if stats.TotalAssessments > 0 {
		stats.AverageScore = total / float64(stats.TotalAssessments)
	}

	leads, err := c.src.ListLeads(ctx, store.LeadFilter{
		Since: stats.PeriodStart,
		Until: now,
	})
	if err != nil {
		return nil, eris.Wrap(err, "digest: list leads")
	}
	stats.TopStates = topStates(leads, maxTopStates)

	return stats, nil
}

// topStates counts each state once per lead and returns the n most common,
// ties broken alphabetically.
func topStates(leads []model.Lead, n int) []StateCount {
	counts := map[string]int{}
	for _, l := range leads {
		seen := map[string]bool{}
		for _, s := range l.OperatingStates {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			counts[s]++
		}
	}

	out := make([]StateCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, StateCount{State: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].State < out[j].State
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
