package model

import "time"

// Answer is a submitted answer. Any score the caller sends is ignored; the
// resolved score always comes from the question bank.
type Answer struct {
	QuestionID string `json:"question_id"`
	OptionID   string `json:"selected_option_id"`
}

// Submission is one completed questionnaire.
type Submission struct {
	CompanyName string          `json:"company_name"`
	ContactName string          `json:"contact_name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone,omitempty"`
	Industry    string          `json:"industry,omitempty"`
	Profile     BusinessProfile `json:"profile"`
	Answers     []Answer        `json:"answers"`
}

// AggregationMode selects how the overall percentage is derived from the
// category scores.
type AggregationMode string

// Supported aggregation modes.
const (
	AggregationPointWeighted    AggregationMode = "point_weighted"
	AggregationCategoryWeighted AggregationMode = "category_weighted"
)

// CategoryScore is the scored outcome for one category.
type CategoryScore struct {
	Category        string   `json:"category"`
	Name            string   `json:"name"`
	RawScore        int      `json:"raw_score"`
	RawMax          int      `json:"raw_max"`
	Percentage      float64  `json:"percentage"`
	RiskTier        RiskTier `json:"risk_tier"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// AssessmentResult is the immutable output of scoring one submission.
type AssessmentResult struct {
	ID                string          `json:"id"`
	SubmittedAt       time.Time       `json:"submitted_at"`
	BankVersion       string          `json:"bank_version"`
	AggregationMode   AggregationMode `json:"aggregation_mode"`
	CompanyName       string          `json:"company_name"`
	ContactName       string          `json:"contact_name"`
	Email             string          `json:"email"`
	OverallScore      int             `json:"overall_score"`
	OverallMax        int             `json:"overall_max"`
	OverallPercentage float64         `json:"overall_percentage"`
	OverallRiskTier   RiskTier        `json:"overall_risk_tier"`
	CategoryScores    []CategoryScore `json:"category_scores"`
	PriorityActions   []string        `json:"priority_actions"`
}

// CategoryScore returns the score for the given category id, or nil if the
// category had no applicable question.
func (r *AssessmentResult) CategoryScore(category string) *CategoryScore {
	for i := range r.CategoryScores {
		if r.CategoryScores[i].Category == category {
			return &r.CategoryScores[i]
		}
	}
	return nil
}
