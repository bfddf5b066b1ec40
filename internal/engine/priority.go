package engine

import (
	"fmt"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Priority action limits.
const (
	MaxPriorityActions = 5
	maxWorstTierPicks  = 3
)

// MaintenanceActions are returned when no category needs urgent work.
var MaintenanceActions = []string{
	"Continue maintaining your current compliance standards",
	"Consider periodic reviews to ensure ongoing compliance",
}

// SelectPriorityActions picks the headline remediation steps. Only the worst
// tier and the one above it qualify, and never the healthiest tier. Up to
// three come from the worst tier; the next tier fills the rest. Scores must
// be in category declaration order.
func SelectPriorityActions(c *Classifier, scores []model.CategoryScore) []string {
	tiers := c.Tiers()
	worst := c.Worst()

	var next model.RiskTier
	if len(tiers) > 2 {
		next = tiers[len(tiers)-2]
	}

	var actions []string
	for _, cs := range scores {
		if len(actions) >= maxWorstTierPicks {
			break
		}
		if cs.RiskTier == worst && len(tiers) > 1 && len(cs.Recommendations) > 0 {
			actions = append(actions, formatAction(cs))
		}
	}
	if next != "" {
		for _, cs := range scores {
			if len(actions) >= MaxPriorityActions {
				break
			}
			if cs.RiskTier == next && len(cs.Recommendations) > 0 {
				actions = append(actions, formatAction(cs))
			}
		}
	}

	if len(actions) == 0 {
		return append([]string(nil), MaintenanceActions...)
	}
	return actions
}

func formatAction(cs model.CategoryScore) string {
	return fmt.Sprintf("%s - %s: %s", TierLabel(cs.RiskTier), cs.Name, cs.Recommendations[0])
}
