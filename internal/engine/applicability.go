package engine

import (
	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/model"
)

// IsApplicable decides whether q should be asked and scored. answered holds
// the effective answers of questions already resolved as applicable.
func IsApplicable(q model.Question, profile model.BusinessProfile, answered map[string]string) bool {
	if c := q.Conditional; c != nil {
		if answered[c.DependsOn] != c.RequiredOption {
			return false
		}
	}

	r := q.Applicability
	if r == nil {
		return true
	}
	switch r.Kind {
	case model.RuleEmployeeCountAtLeast:
		return profile.Employees() >= r.MinEmployees
	case model.RuleRegionIn:
		return profile.HasRegion(r.Regions)
	case model.RuleBooleanFlag:
		return profile.Flags[r.Flag]
	}
	// Rule kinds are validated when the bank is built.
	return false
}

// Resolution is the applicability outcome for one submission.
type Resolution struct {
	// Applicable is the set of question ids that apply.
	Applicable map[string]bool
	// Answers holds answers of applicable questions only.
	Answers map[string]string
	// Ignored lists answered questions that did not apply, in dependency order.
	Ignored []string
}

// Resolve walks the bank in dependency order so a prerequisite is settled
// before anything gated on it. An answer only gates children once its own
// question applies, so an inapplicable parent disables its whole subtree.
func Resolve(b *bank.Bank, profile model.BusinessProfile, answers map[string]string) Resolution {
	res := Resolution{
		Applicable: make(map[string]bool, b.Len()),
		Answers:    make(map[string]string, len(answers)),
	}
	for _, id := range b.Order() {
		q, _ := b.Question(id)
		if !IsApplicable(q, profile, res.Answers) {
			if _, ok := answers[id]; ok {
				res.Ignored = append(res.Ignored, id)
			}
			continue
		}
		res.Applicable[id] = true
		if a, ok := answers[id]; ok {
			res.Answers[id] = a
		}
	}
	return res
}
