// Package store persists assessment results and the leads derived from them.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	ErrNotFound      = eris.New("store: not found")
	ErrAlreadyExists = eris.New("store: already exists")
)

// AssessmentFilter specifies criteria for listing assessments. A zero Limit
// means no limit.
type AssessmentFilter struct {
	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty"`
	Limit int       `json:"limit,omitempty"`
}

// LeadFilter specifies criteria for listing leads. States matches leads that
// operate in any of the given states.
type LeadFilter struct {
	Since    time.Time        `json:"since,omitempty"`
	Until    time.Time        `json:"until,omitempty"`
	States   []string         `json:"states,omitempty"`
	MinScore *float64         `json:"min_score,omitempty"`
	MaxScore *float64         `json:"max_score,omitempty"`
	Status   model.LeadStatus `json:"status,omitempty"`
	Limit    int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for assessments and leads.
type Store interface {
	// Assessments are create-once.
	SaveAssessment(ctx context.Context, result *model.AssessmentResult) error
	GetAssessment(ctx context.Context, id string) (*model.AssessmentResult, error)
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.AssessmentResult, error)

	// Leads
	SaveLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	SetLeadSalesforceID(ctx context.Context, id, salesforceID string) error

	// SaveSubmission writes a result and its lead atomically.
	SaveSubmission(ctx context.Context, result *model.AssessmentResult, lead *model.Lead) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// matchesStates reports whether a lead operates in any wanted state.
func matchesStates(lead model.Lead, states []string) bool {
	if len(states) == 0 {
		return true
	}
	for _, have := range lead.OperatingStates {
		for _, want := range states {
			if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}

// applyStatesAndLimit finishes a lead query whose other filters ran in SQL.
func applyStatesAndLimit(leads []model.Lead, filter LeadFilter) []model.Lead {
	out := leads[:0]
	for _, l := range leads {
		if !matchesStates(l, filter.States) {
			continue
		}
		out = append(out, l)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func validateLeadStatus(status model.LeadStatus) error {
	if !status.Valid() {
		return eris.Errorf("store: invalid lead status %q", status)
	}
	return nil
}

// ensureID assigns a fresh UUID to an empty identifier.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func upperTrimmed(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}
