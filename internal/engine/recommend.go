package engine

import (
	"github.com/sells-group/compliance-cli/internal/model"
)

// recommend slices the catalog entries for a category by its tier: the
// healthiest tier gets the first entry, each worse tier one more, and the
// worst tier gets the whole list.
func (e *Engine) recommend(category string, tier model.RiskTier) []string {
	recs := e.catalog.Entries(category)
	if recs == nil {
		recs = []string{}
	}
	if tier == e.classifier.Worst() {
		return recs
	}
	rank, ok := e.classifier.Rank(tier)
	if !ok {
		return recs
	}
	n := rank + 1
	if n > len(recs) {
		n = len(recs)
	}
	return recs[:n]
}
