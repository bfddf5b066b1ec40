package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/model"
)

func TestIsApplicable(t *testing.T) {
	t.Parallel()

	threshold := model.Question{ID: "pf", Applicability: &model.ApplicabilityRule{Kind: model.RuleEmployeeCountAtLeast, MinEmployees: 20}}
	region := model.Question{ID: "ptax", Applicability: &model.ApplicabilityRule{Kind: model.RuleRegionIn, Regions: []string{"MH", "KA"}}}
	flag := model.Question{ID: "hire", Applicability: &model.ApplicabilityRule{Kind: model.RuleBooleanFlag, Flag: "labour_hire"}}
	child := model.Question{ID: "child", Conditional: &model.ConditionalRule{DependsOn: "parent", RequiredOption: "yes"}}
	both := model.Question{
		ID:            "both",
		Conditional:   &model.ConditionalRule{DependsOn: "parent", RequiredOption: "yes"},
		Applicability: &model.ApplicabilityRule{Kind: model.RuleEmployeeCountAtLeast, MinEmployees: 10},
	}

	tests := []struct {
		name    string
		q       model.Question
		profile model.BusinessProfile
		answers map[string]string
		want    bool
	}{
		{"no rule", model.Question{ID: "plain"}, model.BusinessProfile{}, nil, true},
		{"threshold met", threshold, model.BusinessProfile{EmployeeCount: 20}, nil, true},
		{"threshold unmet", threshold, model.BusinessProfile{EmployeeCount: 19}, nil, false},
		{"threshold from range", threshold, model.BusinessProfile{EmployeeRange: "51-200"}, nil, true},
		{"region match case insensitive", region, model.BusinessProfile{Regions: []string{"ka"}}, nil, true},
		{"region miss", region, model.BusinessProfile{Regions: []string{"DL"}}, nil, false},
		{"flag set", flag, model.BusinessProfile{Flags: map[string]bool{"labour_hire": true}}, nil, true},
		{"flag unset", flag, model.BusinessProfile{}, nil, false},
		{"conditional met", child, model.BusinessProfile{}, map[string]string{"parent": "yes"}, true},
		{"conditional other option", child, model.BusinessProfile{}, map[string]string{"parent": "no"}, false},
		{"conditional unanswered", child, model.BusinessProfile{}, nil, false},
		{"both true", both, model.BusinessProfile{EmployeeCount: 12}, map[string]string{"parent": "yes"}, true},
		{"both, rule false", both, model.BusinessProfile{EmployeeCount: 2}, map[string]string{"parent": "yes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsApplicable(tt.q, tt.profile, tt.answers))
		})
	}
}

func TestResolve_InapplicableParentDisablesSubtree(t *testing.T) {
	t.Parallel()

	b, err := bank.New("v", []model.Category{{ID: "c"}}, []model.Question{
		{ID: "grandchild", Category: "c", Weight: 1, Options: threeOptions("grandchild"),
			Conditional: &model.ConditionalRule{DependsOn: "child", RequiredOption: "child_top"}},
		{ID: "child", Category: "c", Weight: 1, Options: threeOptions("child"),
			Conditional: &model.ConditionalRule{DependsOn: "root", RequiredOption: "root_top"}},
		{ID: "root", Category: "c", Weight: 1, Options: threeOptions("root"),
			Applicability: &model.ApplicabilityRule{Kind: model.RuleEmployeeCountAtLeast, MinEmployees: 50}},
	})
	require.NoError(t, err)

	answers := map[string]string{"root": "root_top", "child": "child_top", "grandchild": "grandchild_mid"}

	small := Resolve(b, model.BusinessProfile{EmployeeCount: 5}, answers)
	assert.Empty(t, small.Applicable)
	assert.Empty(t, small.Answers)
	assert.Equal(t, []string{"root", "child", "grandchild"}, small.Ignored)

	large := Resolve(b, model.BusinessProfile{EmployeeCount: 80}, answers)
	assert.Len(t, large.Applicable, 3)
	assert.Equal(t, answers, large.Answers)
	assert.Empty(t, large.Ignored)
}
