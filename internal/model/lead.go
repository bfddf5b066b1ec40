package model

import "time"

// LeadStatus tracks a lead through the sales follow-up.
type LeadStatus string

// Lead statuses.
const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}

// Lead is the sales-facing record derived from an assessment. It shares the
// assessment's id.
type Lead struct {
	ID                 string     `json:"id"`
	CompanyName        string     `json:"company_name"`
	ContactName        string     `json:"contact_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	CompanySize        string     `json:"company_size,omitempty"`
	Industry           string     `json:"industry,omitempty"`
	OperatingStates    []string   `json:"operating_states,omitempty"`
	SubmittedAt        time.Time  `json:"submitted_at"`
	OverallPercentage  float64    `json:"overall_percentage"`
	OverallRiskTier    RiskTier   `json:"overall_risk_tier"`
	HighRiskCategories []string   `json:"high_risk_categories"`
	Status             LeadStatus `json:"status"`
	SalesforceID       string     `json:"salesforce_id,omitempty"`
}
