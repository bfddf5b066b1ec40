package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

func TestCompute_AllTopAnswers(t *testing.T) {
	b := fifteenQuestionBank(t)
	e := newTestEngine(t, DefaultConfig())

	res, diag, err := e.Compute(b, model.Submission{CompanyName: "Acme", Answers: answerAll(b, "_top")})
	require.NoError(t, err)
	assert.True(t, diag.Empty())

	assert.Equal(t, "result-1", res.ID)
	assert.Equal(t, fixedTime, res.SubmittedAt)
	assert.Equal(t, "test-15", res.BankVersion)
	assert.Equal(t, "Acme", res.CompanyName)
	assert.Equal(t, 150, res.OverallScore)
	assert.Equal(t, 150, res.OverallMax)
	assert.Equal(t, 100.0, res.OverallPercentage)
	assert.Equal(t, TierHealthy, res.OverallRiskTier)
	assert.Equal(t, MaintenanceActions, res.PriorityActions)

	require.Len(t, res.CategoryScores, 5)
	for _, cs := range res.CategoryScores {
		assert.Equal(t, TierHealthy, cs.RiskTier)
		assert.Empty(t, cs.Issues)
		assert.Equal(t, []string{cs.Category + " first"}, cs.Recommendations)
	}
}

func TestCompute_AllZeroAnswers(t *testing.T) {
	b := fifteenQuestionBank(t)
	e := newTestEngine(t, DefaultConfig())

	res, _, err := e.Compute(b, model.Submission{Answers: answerAll(b, "_zero")})
	require.NoError(t, err)

	assert.Equal(t, 0, res.OverallScore)
	assert.Equal(t, 150, res.OverallMax)
	assert.Equal(t, 0.0, res.OverallPercentage)
	assert.Equal(t, TierHighRisk, res.OverallRiskTier)

	for _, cs := range res.CategoryScores {
		assert.Equal(t, TierHighRisk, cs.RiskTier)
		assert.Len(t, cs.Issues, 3, cs.Category)
		assert.Len(t, cs.Recommendations, 4)
	}
	assert.Equal(t, "Question q1: Not at all", res.CategoryScores[0].Issues[0])

	assert.Equal(t, []string{
		"HIGH RISK - Category docs: docs first",
		"HIGH RISK - Category policies: policies first",
		"HIGH RISK - Category payroll: payroll first",
	}, res.PriorityActions)
}

func TestCompute_MixedTiersAndRecommendationSlices(t *testing.T) {
	b := fifteenQuestionBank(t)
	e := newTestEngine(t, DefaultConfig())

	answers := []model.Answer{
		// docs: 30/30 healthy
		{QuestionID: "q1", OptionID: "q1_top"}, {QuestionID: "q2", OptionID: "q2_top"}, {QuestionID: "q3", OptionID: "q3_top"},
		// policies: 20/30 = 66.67 moderate
		{QuestionID: "q4", OptionID: "q4_top"}, {QuestionID: "q5", OptionID: "q5_mid"}, {QuestionID: "q6", OptionID: "q6_mid"},
		// payroll: 10/30 = 33.33 high_risk
		{QuestionID: "q7", OptionID: "q7_top"}, {QuestionID: "q8", OptionID: "q8_zero"}, {QuestionID: "q9", OptionID: "q9_zero"},
		// records: 15/30 = 50 moderate
		{QuestionID: "q10", OptionID: "q10_top"}, {QuestionID: "q11", OptionID: "q11_mid"}, {QuestionID: "q12", OptionID: "q12_zero"},
		// exits: unanswered, 0/30 high_risk
	}
	res, _, err := e.Compute(b, model.Submission{Answers: answers})
	require.NoError(t, err)

	docs := res.CategoryScore("docs")
	require.NotNil(t, docs)
	assert.Equal(t, TierHealthy, docs.RiskTier)
	assert.Len(t, docs.Recommendations, 1)

	policies := res.CategoryScore("policies")
	assert.Equal(t, 66.67, policies.Percentage)
	assert.Equal(t, TierModerate, policies.RiskTier)
	assert.Equal(t, []string{"policies first", "policies second"}, policies.Recommendations)
	assert.Empty(t, policies.Issues)

	payroll := res.CategoryScore("payroll")
	assert.Equal(t, 33.33, payroll.Percentage)
	assert.Equal(t, TierHighRisk, payroll.RiskTier)
	assert.Len(t, payroll.Recommendations, 4)
	assert.Equal(t, []string{"Question q8: Not at all", "Question q9: Not at all"}, payroll.Issues)

	exits := res.CategoryScore("exits")
	assert.Equal(t, 0, exits.RawScore)
	assert.Equal(t, 30, exits.RawMax)
	assert.Empty(t, exits.Issues)

	assert.Equal(t, 75, res.OverallScore)
	assert.Equal(t, 150, res.OverallMax)
	assert.Equal(t, 50.0, res.OverallPercentage)
	assert.Equal(t, TierModerate, res.OverallRiskTier)

	assert.Equal(t, []string{
		"HIGH RISK - Category payroll: payroll first",
		"HIGH RISK - Category exits: exits first",
		"MODERATE - Category policies: policies first",
		"MODERATE - Category records: records first",
	}, res.PriorityActions)
}

func TestCompute_ExcludeUnanswered(t *testing.T) {
	b := fifteenQuestionBank(t)
	cfg := DefaultConfig()
	cfg.ExcludeUnanswered = true
	e := newTestEngine(t, cfg)

	res, _, err := e.Compute(b, model.Submission{Answers: []model.Answer{
		{QuestionID: "q1", OptionID: "q1_top"},
		{QuestionID: "q2", OptionID: "q2_mid"},
	}})
	require.NoError(t, err)

	require.Len(t, res.CategoryScores, 1)
	assert.Equal(t, 15, res.OverallScore)
	assert.Equal(t, 20, res.OverallMax)
	assert.Equal(t, 75.0, res.OverallPercentage)
}

func TestCompute_EmptySubmission(t *testing.T) {
	b := fifteenQuestionBank(t)

	t.Run("penalize", func(t *testing.T) {
		res, _, err := newTestEngine(t, DefaultConfig()).Compute(b, model.Submission{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.OverallPercentage)
		assert.Len(t, res.CategoryScores, 5)
	})

	t.Run("exclude", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ExcludeUnanswered = true
		res, _, err := newTestEngine(t, cfg).Compute(b, model.Submission{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.OverallPercentage)
		assert.Equal(t, 0, res.OverallMax)
		assert.Empty(t, res.CategoryScores)
		assert.Equal(t, TierHighRisk, res.OverallRiskTier)
		assert.Equal(t, MaintenanceActions, res.PriorityActions)
	})
}

func TestCompute_Diagnostics(t *testing.T) {
	b := fifteenQuestionBank(t)
	e := newTestEngine(t, DefaultConfig())

	res, diag, err := e.Compute(b, model.Submission{Answers: []model.Answer{
		{QuestionID: "q1", OptionID: "q1_zero"},
		{QuestionID: "q1", OptionID: "q1_top"},
		{QuestionID: "q2", OptionID: "q2_bogus"},
		{QuestionID: "q99", OptionID: "x"},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"q99"}, diag.UnknownQuestions)
	assert.Equal(t, []UnknownOption{{QuestionID: "q2", OptionID: "q2_bogus"}}, diag.UnknownOptions)
	assert.Equal(t, []string{"q1"}, diag.DuplicateAnswers)
	assert.False(t, diag.Empty())

	docs := res.CategoryScore("docs")
	// Last answer wins for q1, unknown option scores 0 with its ceiling kept.
	assert.Equal(t, 10, docs.RawScore)
	assert.Equal(t, 30, docs.RawMax)
}

func TestCompute_CategoryWeighted(t *testing.T) {
	cats := []model.Category{
		{ID: "a", Name: "A", Weight: 75},
		{ID: "b", Name: "B", Weight: 25},
	}
	b, err := bank.New("w1", cats, []model.Question{
		{ID: "a1", Category: "a", Weight: 1, Options: threeOptions("a1")},
		{ID: "a2", Category: "a", Weight: 1, Options: threeOptions("a2")},
		{ID: "b1", Category: "b", Weight: 2, Options: threeOptions("b1")},
	})
	require.NoError(t, err)

	sub := model.Submission{Answers: []model.Answer{
		{QuestionID: "a1", OptionID: "a1_top"},
		{QuestionID: "a2", OptionID: "a2_zero"},
		{QuestionID: "b1", OptionID: "b1_top"},
	}}

	point, _, err := newTestEngine(t, DefaultConfig()).Compute(b, sub)
	require.NoError(t, err)
	assert.Equal(t, 75.0, point.OverallPercentage)
	assert.Equal(t, model.AggregationPointWeighted, point.AggregationMode)

	cfg := DefaultConfig()
	cfg.Aggregation = string(model.AggregationCategoryWeighted)
	weighted, _, err := newTestEngine(t, cfg).Compute(b, sub)
	require.NoError(t, err)
	assert.Equal(t, 62.5, weighted.OverallPercentage)
	assert.Equal(t, TierModerate, weighted.OverallRiskTier)
	assert.Equal(t, 30, weighted.OverallScore)
	assert.Equal(t, 40, weighted.OverallMax)
}

func TestCompute_CategoryWeightedRejectsZeroWeight(t *testing.T) {
	b, err := bank.New("w0", []model.Category{{ID: "a", Weight: 0}}, []model.Question{
		{ID: "a1", Category: "a", Weight: 1, Options: threeOptions("a1")},
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Aggregation = string(model.AggregationCategoryWeighted)
	_, _, err = newTestEngine(t, cfg).Compute(b, model.Submission{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight must be > 0")
}

func TestCompute_FourTierTable(t *testing.T) {
	opts := func(id string) []model.QuestionOption {
		return []model.QuestionOption{
			{ID: id + "_top", Text: "Yes", Score: 10, RiskTag: TierLow},
			{ID: id + "_half", Text: "Half", Score: 5, RiskTag: TierHigh},
			{ID: id + "_zero", Text: "No", Score: 0, RiskTag: TierCritical},
		}
	}
	b, err := bank.New("four", []model.Category{{ID: "docs", Name: "Docs"}, {ID: "policies", Name: "Policies"}}, []model.Question{
		{ID: "d1", Category: "docs", Weight: 1, Options: opts("d1")},
		{ID: "d2", Category: "docs", Text: "Policies signed", Weight: 1, Options: opts("d2")},
		{ID: "p1", Category: "policies", Text: "Training logged", Weight: 1, Options: opts("p1")},
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TierPreset = PresetFourTier
	e := newTestEngine(t, cfg)

	// A three-tier bank is rejected by a four-tier engine.
	_, _, err = e.Compute(fifteenQuestionBank(t), model.Submission{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a configured tier")

	res, _, err := e.Compute(b, model.Submission{Answers: []model.Answer{
		{QuestionID: "d1", OptionID: "d1_top"},
		{QuestionID: "d2", OptionID: "d2_zero"},
		{QuestionID: "p1", OptionID: "p1_half"},
	}})
	require.NoError(t, err)

	docs := res.CategoryScore("docs")
	assert.Equal(t, TierHigh, docs.RiskTier)
	assert.Equal(t, []string{"docs first", "docs second", "docs third"}, docs.Recommendations)
	assert.Equal(t, []string{"Policies signed: No"}, docs.Issues)

	policies := res.CategoryScore("policies")
	assert.Equal(t, TierHigh, policies.RiskTier)
	// Four tiers default to "high or worse".
	assert.Equal(t, TierHigh, e.IssueFloor())
	assert.Equal(t, []string{"Training logged: Half"}, policies.Issues)

	assert.Equal(t, []string{
		"HIGH - Docs: docs first",
		"HIGH - Policies: policies first",
	}, res.PriorityActions)
}

func TestCompute_FourTierHighTagRaisesIssue(t *testing.T) {
	b, err := bank.New("four-high", []model.Category{{ID: "docs", Name: "Docs"}}, []model.Question{
		{ID: "d1", Category: "docs", Text: "Register kept", Weight: 1, Options: []model.QuestionOption{
			{ID: "yes", Text: "Yes", Score: 10, RiskTag: TierLow},
			{ID: "no", Text: "No", Score: 0, RiskTag: TierHigh},
		}},
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TierPreset = PresetFourTier
	res, _, err := newTestEngine(t, cfg).Compute(b, model.Submission{Answers: []model.Answer{
		{QuestionID: "d1", OptionID: "no"},
	}})
	require.NoError(t, err)

	docs := res.CategoryScore("docs")
	assert.Equal(t, TierCritical, docs.RiskTier)
	assert.Equal(t, []string{"Register kept: No"}, docs.Issues)
}

func TestCompute_IssueSeverityFloor(t *testing.T) {
	b := fifteenQuestionBank(t)
	cfg := DefaultConfig()
	cfg.IssueSeverityFloor = string(TierModerate)
	e := newTestEngine(t, cfg)

	res, _, err := e.Compute(b, model.Submission{Answers: []model.Answer{
		{QuestionID: "q1", OptionID: "q1_mid"},
		{QuestionID: "q2", OptionID: "q2_zero"},
		{QuestionID: "q3", OptionID: "q3_top"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Question q1: Partly", "Question q2: Not at all"}, res.CategoryScore("docs").Issues)
}

func TestCompute_OmitsCategoriesWithoutApplicableQuestions(t *testing.T) {
	b, err := bank.New("v", []model.Category{{ID: "docs"}, {ID: "big"}}, []model.Question{
		{ID: "d1", Category: "docs", Weight: 1, Options: threeOptions("d1")},
		{ID: "b1", Category: "big", Weight: 1, Options: threeOptions("b1"),
			Applicability: &model.ApplicabilityRule{Kind: model.RuleEmployeeCountAtLeast, MinEmployees: 20}},
	})
	require.NoError(t, err)

	res, _, err := newTestEngine(t, DefaultConfig()).Compute(b, model.Submission{
		Profile: model.BusinessProfile{EmployeeCount: 5},
		Answers: []model.Answer{{QuestionID: "d1", OptionID: "d1_top"}},
	})
	require.NoError(t, err)
	require.Len(t, res.CategoryScores, 1)
	assert.Nil(t, res.CategoryScore("big"))
}

func TestCompute_ApplicabilityExclusion(t *testing.T) {
	b, err := bank.New("v", []model.Category{{ID: "payroll"}}, []model.Question{
		{ID: "base", Category: "payroll", Weight: 1, Options: threeOptions("base")},
		{ID: "pf", Category: "payroll", Weight: 3, Options: threeOptions("pf"),
			Applicability: &model.ApplicabilityRule{Kind: model.RuleEmployeeCountAtLeast, MinEmployees: 20}},
	})
	require.NoError(t, err)
	e := newTestEngine(t, DefaultConfig())
	answers := []model.Answer{
		{QuestionID: "base", OptionID: "base_top"},
		{QuestionID: "pf", OptionID: "pf_zero"},
	}

	small, diag, err := e.Compute(b, model.Submission{Profile: model.BusinessProfile{EmployeeCount: 10}, Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, 10, small.OverallMax)
	assert.Equal(t, 100.0, small.OverallPercentage)
	assert.Equal(t, []string{"pf"}, diag.IgnoredAnswers)

	large, _, err := e.Compute(b, model.Submission{Profile: model.BusinessProfile{EmployeeCount: 25}, Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, 40, large.OverallMax)
	assert.Equal(t, 25.0, large.OverallPercentage)

	ranged, _, err := e.Compute(b, model.Submission{Profile: model.BusinessProfile{EmployeeRange: "11-50"}, Answers: answers})
	require.NoError(t, err)
	assert.Equal(t, 10, ranged.OverallMax, "range lower bound 11 is below the threshold")
}

func TestCompute_ConditionalGating(t *testing.T) {
	b, err := bank.New("v", []model.Category{{ID: "exits"}}, []model.Question{
		{ID: "contractors", Category: "exits", Weight: 1, Informational: true, Options: []model.QuestionOption{
			{ID: "c_yes", Text: "Yes", RiskTag: TierHealthy},
			{ID: "c_no", Text: "No", RiskTag: TierHealthy},
		}},
		{ID: "review", Category: "exits", Weight: 1, Options: threeOptions("review"),
			Conditional: &model.ConditionalRule{DependsOn: "contractors", RequiredOption: "c_yes"}},
		{ID: "notice", Category: "exits", Weight: 1, Options: threeOptions("notice")},
	})
	require.NoError(t, err)
	e := newTestEngine(t, DefaultConfig())

	tests := []struct {
		name    string
		answers []model.Answer
		wantMax int
	}{
		{"prerequisite unanswered", []model.Answer{{QuestionID: "notice", OptionID: "notice_top"}}, 10},
		{"prerequisite other option", []model.Answer{
			{QuestionID: "contractors", OptionID: "c_no"},
			{QuestionID: "review", OptionID: "review_zero"},
			{QuestionID: "notice", OptionID: "notice_top"},
		}, 10},
		{"prerequisite matches", []model.Answer{
			{QuestionID: "contractors", OptionID: "c_yes"},
			{QuestionID: "review", OptionID: "review_zero"},
			{QuestionID: "notice", OptionID: "notice_top"},
		}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := e.Compute(b, model.Submission{Answers: tt.answers})
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, res.OverallMax)
			assert.Equal(t, 10, res.OverallScore)
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	b := fifteenQuestionBank(t)
	e := newTestEngine(t, DefaultConfig())
	sub := model.Submission{Answers: randomAnswers(b, rand.New(rand.NewSource(7)))}

	first, _, err := e.Compute(b, sub)
	require.NoError(t, err)
	second, _, err := e.Compute(b, sub)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompute_Bounds(t *testing.T) {
	b := fifteenQuestionBank(t)
	rng := rand.New(rand.NewSource(42))

	for _, mode := range []model.AggregationMode{model.AggregationPointWeighted, model.AggregationCategoryWeighted} {
		cfg := DefaultConfig()
		cfg.Aggregation = string(mode)
		e := newTestEngine(t, cfg)
		for i := 0; i < 200; i++ {
			res, _, err := e.Compute(b, model.Submission{Answers: randomAnswers(b, rng)})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.OverallPercentage, 0.0)
			assert.LessOrEqual(t, res.OverallPercentage, 100.0)
			assert.LessOrEqual(t, len(res.PriorityActions), MaxPriorityActions)
			assert.NotEmpty(t, res.PriorityActions)
			for _, cs := range res.CategoryScores {
				assert.GreaterOrEqual(t, cs.RawScore, 0)
				assert.LessOrEqual(t, cs.RawScore, cs.RawMax)
				assert.GreaterOrEqual(t, cs.Percentage, 0.0)
				assert.LessOrEqual(t, cs.Percentage, 100.0)
			}
		}
	}
}

func TestCompute_Monotonic(t *testing.T) {
	b := fifteenQuestionBank(t)
	e := newTestEngine(t, DefaultConfig())
	rng := rand.New(rand.NewSource(99))
	upgrade := map[string]string{"_zero": "_mid", "_mid": "_top"}

	for i := 0; i < 100; i++ {
		answers := randomAnswers(b, rng)
		before, _, err := e.Compute(b, model.Submission{Answers: answers})
		require.NoError(t, err)

		idx := rng.Intn(len(answers))
		improved := append([]model.Answer(nil), answers...)
		a := improved[idx]
		for from, to := range upgrade {
			if len(a.OptionID) > len(from) && a.OptionID[len(a.OptionID)-len(from):] == from {
				improved[idx].OptionID = a.QuestionID + to
			}
		}

		after, _, err := e.Compute(b, model.Submission{Answers: improved})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, after.OverallPercentage, before.OverallPercentage)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EngineConfig
		wantErr string
	}{
		{"aggregation", config.EngineConfig{Aggregation: "median"}, `unknown aggregation "median"`},
		{"preset", config.EngineConfig{TierPreset: "five_tier"}, `unknown tier preset "five_tier"`},
		{"floor", config.EngineConfig{IssueSeverityFloor: "critical"}, `issue_severity_floor "critical"`},
		{"custom table", config.EngineConfig{Tiers: []config.TierBand{{Tier: "ok", Min: 50}, {Tier: "bad", Min: 10}}}, "last tier must have min 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(config.EngineConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.AggregationPointWeighted, e.Mode())
	assert.Equal(t, TierHighRisk, e.IssueFloor())
	assert.Equal(t, []model.RiskTier{TierHealthy, TierModerate, TierHighRisk}, e.Classifier().Tiers())
	assert.NotNil(t, e.Catalog())
}

func TestCompute_NilBank(t *testing.T) {
	_, _, err := newTestEngine(t, DefaultConfig()).Compute(nil, model.Submission{})
	assert.Error(t, err)
}

func TestCompute_DefaultBankAndCatalog(t *testing.T) {
	b, err := bank.Default()
	require.NoError(t, err)
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Empty(t, catalog.Missing(b))

	e, err := New(DefaultConfig(), catalog)
	require.NoError(t, err)
	require.NoError(t, e.Validate(b))

	var answers []model.Answer
	for _, q := range b.Questions() {
		answers = append(answers, model.Answer{QuestionID: q.ID, OptionID: q.Options[0].ID})
	}

	// Without the contractor answer the gated question stays out, leaving the
	// fifteen base questions for a small business with no regions or flags.
	var withoutContractors []model.Answer
	for _, a := range answers {
		if a.QuestionID != "q17" {
			withoutContractors = append(withoutContractors, a)
		}
	}
	small, diag, err := e.Compute(b, model.Submission{Answers: withoutContractors})
	require.NoError(t, err)
	assert.Equal(t, 150, small.OverallMax)
	assert.Equal(t, 100.0, small.OverallPercentage)
	assert.ElementsMatch(t, []string{"q16", "q18", "q19", "q20"}, diag.IgnoredAnswers)

	large, _, err := e.Compute(b, model.Submission{
		Profile: model.BusinessProfile{EmployeeCount: 40, Regions: []string{"vic"}, Flags: map[string]bool{"labour_hire": true}},
		Answers: answers,
	})
	require.NoError(t, err)
	// q16, q18 (weight 2), q19 and q20 join the fifteen.
	assert.Equal(t, 200, large.OverallMax)
}

func randomAnswers(b *bank.Bank, rng *rand.Rand) []model.Answer {
	suffixes := []string{"_top", "_mid", "_zero"}
	var out []model.Answer
	for _, q := range b.Questions() {
		if rng.Intn(5) == 0 {
			continue
		}
		out = append(out, model.Answer{QuestionID: q.ID, OptionID: q.ID + suffixes[rng.Intn(len(suffixes))]})
	}
	return out
}
