// Package bank holds immutable, versioned question bank snapshots.
package bank

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

// DefaultFullScale is the per-question maximum option score.
const DefaultFullScale = 10

// Bank is a validated question bank snapshot. It is never mutated after New
// returns and is safe for concurrent use.
type Bank struct {
	version    string
	fullScale  int
	categories []model.Category
	catIndex   map[string]int
	questions  []model.Question
	qIndex     map[string]int
	order      []string
	hash       string
}

// Option configures a Bank.
type Option func(*Bank)

// WithFullScale overrides the per-question maximum option score.
func WithFullScale(n int) Option {
	return func(b *Bank) {
		b.fullScale = n
	}
}

// New validates the categories and questions and returns a snapshot. All
// validation problems are reported together.
func New(version string, categories []model.Category, questions []model.Question, opts ...Option) (*Bank, error) {
	b := &Bank{
		version:   strings.TrimSpace(version),
		fullScale: DefaultFullScale,
		catIndex:  make(map[string]int, len(categories)),
		qIndex:    make(map[string]int, len(questions)),
	}
	for _, o := range opts {
		o(b)
	}

	var errs []string
	if b.version == "" {
		errs = append(errs, "version is required")
	}
	if b.fullScale <= 0 {
		errs = append(errs, "full_scale must be > 0")
	}

	for _, c := range categories {
		if c.ID == "" {
			errs = append(errs, "category with empty id")
			continue
		}
		if _, dup := b.catIndex[c.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate category %q", c.ID))
			continue
		}
		if c.Weight < 0 {
			errs = append(errs, fmt.Sprintf("category %q: weight must be >= 0", c.ID))
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		b.catIndex[c.ID] = len(b.categories)
		b.categories = append(b.categories, c)
	}

	for _, q := range questions {
		if q.ID == "" {
			errs = append(errs, "question with empty id")
			continue
		}
		if _, dup := b.qIndex[q.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate question %q", q.ID))
			continue
		}
		errs = append(errs, b.checkQuestion(q)...)
		b.qIndex[q.ID] = len(b.questions)
		b.questions = append(b.questions, cloneQuestion(q))
	}

	// Prerequisite checks need every question indexed first.
	for _, q := range b.questions {
		errs = append(errs, b.checkConditional(q)...)
	}

	if len(errs) == 0 {
		order, err := b.topoOrder()
		if err != nil {
			errs = append(errs, err.Error())
		}
		b.order = order
	}

	if len(errs) > 0 {
		return nil, eris.Errorf("bank: validation failed: %s", strings.Join(errs, "; "))
	}

	b.hash = b.computeHash()
	return b, nil
}

func (b *Bank) checkQuestion(q model.Question) []string {
	var errs []string
	if _, ok := b.catIndex[q.Category]; !ok {
		errs = append(errs, fmt.Sprintf("question %q: unknown category %q", q.ID, q.Category))
	}
	if q.Weight < 1 {
		errs = append(errs, fmt.Sprintf("question %q: weight must be >= 1", q.ID))
	}
	if !q.Informational && len(q.Options) == 0 {
		errs = append(errs, fmt.Sprintf("question %q: no options", q.ID))
	}

	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" {
			errs = append(errs, fmt.Sprintf("question %q: option with empty id", q.ID))
			continue
		}
		if seen[o.ID] {
			errs = append(errs, fmt.Sprintf("question %q: duplicate option %q", q.ID, o.ID))
		}
		seen[o.ID] = true
		if o.Score < 0 || o.Score > b.fullScale {
			errs = append(errs, fmt.Sprintf("question %q: option %q score %d outside [0, %d]", q.ID, o.ID, o.Score, b.fullScale))
		}
	}

	if r := q.Applicability; r != nil {
		switch r.Kind {
		case model.RuleEmployeeCountAtLeast:
			if r.MinEmployees < 0 {
				errs = append(errs, fmt.Sprintf("question %q: min_employees must be >= 0", q.ID))
			}
		case model.RuleRegionIn:
			if len(r.Regions) == 0 {
				errs = append(errs, fmt.Sprintf("question %q: region_in rule without regions", q.ID))
			}
		case model.RuleBooleanFlag:
			if strings.TrimSpace(r.Flag) == "" {
				errs = append(errs, fmt.Sprintf("question %q: boolean_flag rule without flag", q.ID))
			}
		default:
			errs = append(errs, fmt.Sprintf("question %q: unknown applicability kind %q", q.ID, r.Kind))
		}
	}
	return errs
}

func (b *Bank) checkConditional(q model.Question) []string {
	c := q.Conditional
	if c == nil {
		return nil
	}
	if c.DependsOn == q.ID {
		return []string{fmt.Sprintf("question %q: depends on itself", q.ID)}
	}
	i, ok := b.qIndex[c.DependsOn]
	if !ok {
		return []string{fmt.Sprintf("question %q: prerequisite %q not found", q.ID, c.DependsOn)}
	}
	if b.questions[i].Option(c.RequiredOption) == nil {
		return []string{fmt.Sprintf("question %q: prerequisite %q has no option %q", q.ID, c.DependsOn, c.RequiredOption)}
	}
	return nil
}

// topoOrder sorts questions so every prerequisite precedes its dependants.
// Ties keep declaration order.
func (b *Bank) topoOrder() ([]string, error) {
	indegree := make([]int, len(b.questions))
	children := make([][]int, len(b.questions))
	for i, q := range b.questions {
		if q.Conditional == nil {
			continue
		}
		p := b.qIndex[q.Conditional.DependsOn]
		children[p] = append(children[p], i)
		indegree[i]++
	}

	var queue []int
	for i := range b.questions {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]string, 0, len(b.questions))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, b.questions[i].ID)
		for _, c := range children[i] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(order) != len(b.questions) {
		var cyclic []string
		for i, d := range indegree {
			if d > 0 {
				cyclic = append(cyclic, b.questions[i].ID)
			}
		}
		return nil, eris.Errorf("dependency cycle among questions %s", strings.Join(cyclic, ", "))
	}
	return order, nil
}

type document struct {
	Version    string           `json:"version"`
	FullScale  int              `json:"full_scale"`
	Categories []model.Category `json:"categories"`
	Questions  []model.Question `json:"questions"`
}

func (b *Bank) computeHash() string {
	data, err := json.Marshal(document{
		Version:    b.version,
		FullScale:  b.fullScale,
		Categories: b.categories,
		Questions:  b.questions,
	})
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}

// Version returns the bank version.
func (b *Bank) Version() string { return b.version }

// FullScale returns the per-question maximum option score.
func (b *Bank) FullScale() int { return b.fullScale }

// Hash returns a content hash of the bank, stable across loads of the same
// document.
func (b *Bank) Hash() string { return b.hash }

// Question returns the question with the given id.
func (b *Bank) Question(id string) (model.Question, bool) {
	i, ok := b.qIndex[id]
	if !ok {
		return model.Question{}, false
	}
	return b.questions[i], true
}

// Questions returns all questions in declaration order.
func (b *Bank) Questions() []model.Question {
	out := make([]model.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Categories returns all categories in declaration order.
func (b *Bank) Categories() []model.Category {
	out := make([]model.Category, len(b.categories))
	copy(out, b.categories)
	return out
}

// Category returns the category with the given id.
func (b *Bank) Category(id string) (model.Category, bool) {
	i, ok := b.catIndex[id]
	if !ok {
		return model.Category{}, false
	}
	return b.categories[i], true
}

// CategoryIndex returns the declaration position of a category, or -1.
func (b *Bank) CategoryIndex(id string) int {
	i, ok := b.catIndex[id]
	if !ok {
		return -1
	}
	return i
}

// Order returns question ids with prerequisites before dependants.
func (b *Bank) Order() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

func cloneQuestion(q model.Question) model.Question {
	out := q
	out.Options = append([]model.QuestionOption(nil), q.Options...)
	if q.Applicability != nil {
		r := *q.Applicability
		r.Regions = append([]string(nil), q.Applicability.Regions...)
		out.Applicability = &r
	}
	if q.Conditional != nil {
		c := *q.Conditional
		out.Conditional = &c
	}
	return out
}
