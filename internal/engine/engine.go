// Package engine scores compliance submissions against a question bank.
// Computation is pure: the same bank, answers and profile always yield the
// same result apart from its id and timestamp.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

// DefaultConfig returns the engine settings used when nothing is configured.
func DefaultConfig() config.EngineConfig {
	return config.EngineConfig{
		Aggregation: string(model.AggregationPointWeighted),
		TierPreset:  PresetThreeTier,
	}
}

// Engine runs the scoring pipeline. It is immutable and safe for concurrent
// use.
type Engine struct {
	mode              model.AggregationMode
	classifier        *Classifier
	issueFloor        model.RiskTier
	excludeUnanswered bool
	catalog           *Catalog
	now               func() time.Time
	newID             func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides result id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New validates cfg and builds an engine. A nil catalog yields no
// recommendations.
func New(cfg config.EngineConfig, catalog *Catalog, opts ...Option) (*Engine, error) {
	var errs []string

	mode := model.AggregationMode(cfg.Aggregation)
	switch mode {
	case "":
		mode = model.AggregationPointWeighted
	case model.AggregationPointWeighted, model.AggregationCategoryWeighted:
	default:
		errs = append(errs, fmt.Sprintf("unknown aggregation %q", cfg.Aggregation))
	}

	var classifier *Classifier
	bands, err := BandsFromConfig(cfg)
	if err == nil {
		classifier, err = NewClassifier(bands)
	}
	if err != nil {
		errs = append(errs, err.Error())
	}

	var floor model.RiskTier
	if classifier != nil {
		floor = classifier.DefaultFloor()
		if cfg.IssueSeverityFloor != "" {
			floor = model.RiskTier(cfg.IssueSeverityFloor)
			if !classifier.Has(floor) {
				errs = append(errs, fmt.Sprintf("issue_severity_floor %q is not a configured tier", cfg.IssueSeverityFloor))
			}
		}
	}

	if len(errs) > 0 {
		return nil, eris.Errorf("engine: config validation failed: %s", strings.Join(errs, "; "))
	}

	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	e := &Engine{
		mode:              mode,
		classifier:        classifier,
		issueFloor:        floor,
		excludeUnanswered: cfg.ExcludeUnanswered,
		catalog:           catalog,
		now:               func() time.Time { return time.Now().UTC() },
		newID:             uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Classifier returns the active threshold table.
func (e *Engine) Classifier() *Classifier { return e.classifier }

// IssueFloor returns the least severe risk tag that raises an issue.
func (e *Engine) IssueFloor() model.RiskTier { return e.issueFloor }

// Mode returns the active aggregation mode.
func (e *Engine) Mode() model.AggregationMode { return e.mode }

// Catalog returns the recommendation catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Validate checks that a bank can be scored with this configuration.
func (e *Engine) Validate(b *bank.Bank) error {
	if b == nil {
		return eris.New("engine: nil bank")
	}
	var errs []string
	for _, q := range b.Questions() {
		for _, o := range q.Options {
			if !e.classifier.Has(o.RiskTag) {
				errs = append(errs, fmt.Sprintf("question %q option %q: risk tag %q is not a configured tier", q.ID, o.ID, o.RiskTag))
			}
		}
	}
	if e.mode == model.AggregationCategoryWeighted {
		for _, c := range b.Categories() {
			if c.Weight <= 0 {
				errs = append(errs, fmt.Sprintf("category %q: weight must be > 0 for category_weighted aggregation", c.ID))
			}
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("engine: bank %s incompatible: %s", b.Version(), strings.Join(errs, "; "))
	}
	return nil
}

// Compute scores one submission against b. The only error is a bank that
// does not fit this engine's configuration; bad answers are reported in the
// returned Diagnostics instead.
func (e *Engine) Compute(b *bank.Bank, sub model.Submission) (*model.AssessmentResult, Diagnostics, error) {
	var diag Diagnostics
	if err := e.Validate(b); err != nil {
		return nil, diag, err
	}

	answers := collectAnswers(b, sub.Answers, &diag)
	res := Resolve(b, sub.Profile, answers)
	diag.IgnoredAnswers = res.Ignored

	tallies := e.tally(b, res)
	scores := make([]model.CategoryScore, 0, len(tallies))
	for _, t := range tallies {
		pct := t.percentage()
		tier := e.classifier.Classify(pct)
		issues := t.issues
		if issues == nil {
			issues = []string{}
		}
		scores = append(scores, model.CategoryScore{
			Category:        t.category.ID,
			Name:            t.category.Name,
			RawScore:        t.score,
			RawMax:          t.max,
			Percentage:      round2(pct),
			RiskTier:        tier,
			Issues:          issues,
			Recommendations: e.recommend(t.category.ID, tier),
		})
	}

	score, maxScore, pct := e.overall(tallies)

	return &model.AssessmentResult{
		ID:                e.newID(),
		SubmittedAt:       e.now(),
		BankVersion:       b.Version(),
		AggregationMode:   e.mode,
		CompanyName:       sub.CompanyName,
		ContactName:       sub.ContactName,
		Email:             sub.Email,
		OverallScore:      score,
		OverallMax:        maxScore,
		OverallPercentage: round2(pct),
		OverallRiskTier:   e.classifier.Classify(pct),
		CategoryScores:    scores,
		PriorityActions:   SelectPriorityActions(e.classifier, scores),
	}, diag, nil
}
