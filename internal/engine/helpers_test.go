package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

var fixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

var testCategoryIDs = []string{"docs", "policies", "payroll", "records", "exits"}

// threeOptions returns top/mid/zero options tagged with the three-tier names.
func threeOptions(id string) []model.QuestionOption {
	return []model.QuestionOption{
		{ID: id + "_top", Text: "Fully", Score: 10, RiskTag: TierHealthy},
		{ID: id + "_mid", Text: "Partly", Score: 5, RiskTag: TierModerate},
		{ID: id + "_zero", Text: "Not at all", Score: 0, RiskTag: TierHighRisk},
	}
}

// fifteenQuestionBank builds five categories with three weight-1 questions
// each, numbered q1..q15.
func fifteenQuestionBank(t *testing.T) *bank.Bank {
	t.Helper()
	cats := make([]model.Category, len(testCategoryIDs))
	for i, id := range testCategoryIDs {
		cats[i] = model.Category{ID: id, Name: "Category " + id, Weight: 20}
	}
	var qs []model.Question
	for i := 1; i <= 15; i++ {
		id := fmt.Sprintf("q%d", i)
		qs = append(qs, model.Question{
			ID:       id,
			Category: testCategoryIDs[(i-1)/3],
			Text:     "Question " + id,
			Weight:   1,
			Options:  threeOptions(id),
		})
	}
	b, err := bank.New("test-15", cats, qs)
	require.NoError(t, err)
	return b
}

func testCatalog() *Catalog {
	m := make(map[string][]string, len(testCategoryIDs))
	for _, id := range testCategoryIDs {
		m[id] = []string{id + " first", id + " second", id + " third", id + " fourth"}
	}
	return NewCatalog(m)
}

func newTestEngine(t *testing.T, cfg config.EngineConfig) *Engine {
	t.Helper()
	e, err := New(cfg, testCatalog(),
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string { return "result-1" }),
	)
	require.NoError(t, err)
	return e
}

func answerAll(b *bank.Bank, suffix string) []model.Answer {
	var out []model.Answer
	for _, q := range b.Questions() {
		out = append(out, model.Answer{QuestionID: q.ID, OptionID: q.ID + suffix})
	}
	return out
}
