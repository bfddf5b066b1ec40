package model

import (
	"strconv"
	"strings"
)

// RuleKind identifies the predicate an ApplicabilityRule evaluates.
type RuleKind string

// Applicability rule kinds.
const (
	RuleEmployeeCountAtLeast RuleKind = "employee_count_at_least"
	RuleRegionIn             RuleKind = "region_in"
	RuleBooleanFlag          RuleKind = "boolean_flag"
)

// RiskTier names one band of a risk classification table (e.g. "healthy",
// "high_risk"). Option risk tags use the same vocabulary.
type RiskTier string

// QuestionOption is one selectable answer for a question.
type QuestionOption struct {
	ID      string   `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Score   int      `json:"score" yaml:"score"`
	RiskTag RiskTier `json:"risk_tag" yaml:"risk_tag"`
}

// ApplicabilityRule is a predicate over the business profile. Only the field
// matching Kind is consulted.
type ApplicabilityRule struct {
	Kind         RuleKind `json:"kind" yaml:"kind"`
	MinEmployees int      `json:"min_employees,omitempty" yaml:"min_employees,omitempty"`
	Regions      []string `json:"regions,omitempty" yaml:"regions,omitempty"`
	Flag         string   `json:"flag,omitempty" yaml:"flag,omitempty"`
}

// ConditionalRule makes a question relevant only when another question was
// answered with a specific option.
type ConditionalRule struct {
	DependsOn      string `json:"depends_on" yaml:"depends_on"`
	RequiredOption string `json:"required_option" yaml:"required_option"`
}

// Question is a single entry of a question bank.
type Question struct {
	ID            string             `json:"id" yaml:"id"`
	Category      string             `json:"category" yaml:"category"`
	Text          string             `json:"text" yaml:"text"`
	HelpText      string             `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	Weight        int                `json:"weight" yaml:"weight"`
	Options       []QuestionOption   `json:"options,omitempty" yaml:"options,omitempty"`
	Applicability *ApplicabilityRule `json:"applicability,omitempty" yaml:"applicability,omitempty"`
	Conditional   *ConditionalRule   `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	Informational bool               `json:"informational,omitempty" yaml:"informational,omitempty"`
}

// Option returns the option with the given id, or nil if the question has no
// such option.
func (q *Question) Option(id string) *QuestionOption {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}

// Category is a scoring category. Weight is only used by category-weighted
// aggregation.
type Category struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Weight int    `json:"weight" yaml:"weight"`
}

// BusinessProfile carries the attributes applicability rules are evaluated
// against.
type BusinessProfile struct {
	EmployeeCount int             `json:"employee_count,omitempty"`
	EmployeeRange string          `json:"employee_range,omitempty"`
	Regions       []string        `json:"regions,omitempty"`
	Flags         map[string]bool `json:"flags,omitempty"`
}

// Employees returns the employee count used for threshold rules. An explicit
// count wins; otherwise the lower bound of EmployeeRange is used so that a
// business is never held to an obligation its size may not trigger.
func (p BusinessProfile) Employees() int {
	if p.EmployeeCount > 0 {
		return p.EmployeeCount
	}
	return EmployeeRangeLowerBound(p.EmployeeRange)
}

// HasRegion reports whether the profile operates in any of the given regions.
// Comparison is case-insensitive on trimmed codes.
func (p BusinessProfile) HasRegion(regions []string) bool {
	for _, have := range p.Regions {
		h := strings.TrimSpace(have)
		for _, want := range regions {
			if strings.EqualFold(h, strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}

// EmployeeRangeLowerBound parses ranges such as "11-50", "500+" or "20" and
// returns the lower bound. Unparseable input yields 0.
func EmployeeRangeLowerBound(r string) int {
	r = strings.TrimSpace(r)
	if r == "" {
		return 0
	}
	r = strings.TrimSuffix(r, "+")
	if i := strings.IndexAny(r, "-–"); i >= 0 {
		r = r[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(r))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
