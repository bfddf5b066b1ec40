package engine

import (
	"math"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/model"
)

// UnknownOption records an answer naming an option its question lacks.
type UnknownOption struct {
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

// Diagnostics lists data-quality anomalies found while scoring. None of them
// fail a computation; callers are expected to log them.
type Diagnostics struct {
	UnknownQuestions []string        `json:"unknown_questions,omitempty"`
	UnknownOptions   []UnknownOption `json:"unknown_options,omitempty"`
	IgnoredAnswers   []string        `json:"ignored_answers,omitempty"`
	DuplicateAnswers []string        `json:"duplicate_answers,omitempty"`
}

// Empty reports whether nothing unusual was seen.
func (d Diagnostics) Empty() bool {
	return len(d.UnknownQuestions) == 0 && len(d.UnknownOptions) == 0 &&
		len(d.IgnoredAnswers) == 0 && len(d.DuplicateAnswers) == 0
}

// collectAnswers turns the submitted list into a question -> option map. The
// last answer for a question wins.
func collectAnswers(b *bank.Bank, answers []model.Answer, diag *Diagnostics) map[string]string {
	out := make(map[string]string, len(answers))
	for _, a := range answers {
		q, ok := b.Question(a.QuestionID)
		if !ok {
			diag.UnknownQuestions = append(diag.UnknownQuestions, a.QuestionID)
			continue
		}
		if _, seen := out[a.QuestionID]; seen {
			diag.DuplicateAnswers = append(diag.DuplicateAnswers, a.QuestionID)
		}
		out[a.QuestionID] = a.OptionID
		if q.Option(a.OptionID) == nil {
			diag.UnknownOptions = append(diag.UnknownOptions, UnknownOption{QuestionID: a.QuestionID, OptionID: a.OptionID})
		}
	}
	return out
}

// categoryTally accumulates weighted points for one category.
type categoryTally struct {
	category model.Category
	score    int
	max      int
	issues   []string
}

func (t categoryTally) percentage() float64 {
	if t.max == 0 {
		return 0
	}
	return float64(t.score) / float64(t.max) * 100
}

// tally scores every applicable, non-informational question. Results follow
// category declaration order and skip categories with nothing to score.
func (e *Engine) tally(b *bank.Bank, res Resolution) []categoryTally {
	cats := b.Categories()
	tallies := make([]categoryTally, len(cats))
	for i, c := range cats {
		tallies[i].category = c
	}

	full := b.FullScale()
	for _, q := range b.Questions() {
		if q.Informational || !res.Applicable[q.ID] {
			continue
		}
		t := &tallies[b.CategoryIndex(q.Category)]

		optID, answered := res.Answers[q.ID]
		if !answered && e.excludeUnanswered {
			continue
		}
		t.max += full * q.Weight
		if !answered {
			continue
		}
		opt := q.Option(optID)
		if opt == nil {
			continue
		}
		t.score += opt.Score * q.Weight
		if opt.Score < full && e.classifier.AtLeast(opt.RiskTag, e.issueFloor) {
			t.issues = append(t.issues, q.Text+": "+opt.Text)
		}
	}

	out := tallies[:0]
	for _, t := range tallies {
		if t.max > 0 {
			out = append(out, t)
		}
	}
	return out
}

// overall aggregates category tallies into a single unrounded percentage.
func (e *Engine) overall(tallies []categoryTally) (score, maxScore int, pct float64) {
	var weighted, weights float64
	for _, t := range tallies {
		score += t.score
		maxScore += t.max
		weighted += t.percentage() * float64(t.category.Weight)
		weights += float64(t.category.Weight)
	}

	switch e.mode {
	case model.AggregationCategoryWeighted:
		if weights > 0 {
			pct = weighted / weights
		}
	default:
		if maxScore > 0 {
			pct = float64(score) / float64(maxScore) * 100
		}
	}
	return score, maxScore, pct
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
