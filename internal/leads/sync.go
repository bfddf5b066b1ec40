package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/resilience"
	"github.com/sells-group/compliance-cli/pkg/salesforce"
)

// LeadSource is written to every Salesforce Lead created from an assessment.
const LeadSource = "Compliance Assessment"

// IDRecorder stores the Salesforce id assigned to a lead.
type IDRecorder interface {
	SetLeadSalesforceID(ctx context.Context, id, salesforceID string) error
}

// Syncer pushes leads to Salesforce as Lead sObjects.
type Syncer struct {
	sf    salesforce.Client
	store IDRecorder
	retry resilience.Policy
}

// NewSyncer creates a Syncer. store may be nil when ids need not be recorded.
func NewSyncer(sf salesforce.Client, store IDRecorder) *Syncer {
	return &Syncer{sf: sf, store: store, retry: resilience.DefaultPolicy()}
}

// WithRetry sets the policy for idempotent Salesforce calls. Creates are
// never retried since a lost response would duplicate the Lead.
func (s *Syncer) WithRetry(p resilience.Policy) *Syncer {
	s.retry = p
	return s
}

// SyncResult summarises a SyncAll run.
type SyncResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Sync upserts a single lead, matching an open Salesforce Lead by email, and
// returns its Salesforce id. Leads that already carry an id are left alone.
func (s *Syncer) Sync(ctx context.Context, lead *model.Lead) (string, error) {
	if lead.SalesforceID != "" {
		return lead.SalesforceID, nil
	}
	fields := Fields(*lead)

	var sfID string
	var existing *salesforce.Lead
	var err error
	if lead.Email != "" {
		existing, err = resilience.DoVal(ctx, s.retry, "salesforce lead lookup", func(ctx context.Context) (*salesforce.Lead, error) {
			return salesforce.FindLeadByEmail(ctx, s.sf, lead.Email)
		})
		if err != nil {
			return "", eris.Wrapf(err, "leads: sync %s", lead.ID)
		}
	}
	if existing != nil {
		err = resilience.Do(ctx, s.retry, "salesforce lead update", func(ctx context.Context) error {
			return salesforce.UpdateLead(ctx, s.sf, existing.ID, fields)
		})
		if err != nil {
			return "", eris.Wrapf(err, "leads: sync %s", lead.ID)
		}
		sfID = existing.ID
	} else {
		sfID, err = salesforce.CreateLead(ctx, s.sf, fields)
		if err != nil {
			return "", eris.Wrapf(err, "leads: sync %s", lead.ID)
		}
	}

	if err := s.record(ctx, lead.ID, sfID); err != nil {
		return sfID, err
	}
	lead.SalesforceID = sfID
	zap.L().Info("leads: synced to salesforce",
		zap.String("lead_id", lead.ID),
		zap.String("salesforce_id", sfID),
		zap.Bool("updated_existing", existing != nil),
	)
	return sfID, nil
}

// SyncAll creates Salesforce Leads in bulk for every lead without an id.
// Per-record failures are counted rather than aborting the run.
func (s *Syncer) SyncAll(ctx context.Context, leads []model.Lead) (SyncResult, error) {
	var res SyncResult
	var pending []model.Lead
	for _, l := range leads {
		if l.SalesforceID != "" {
			res.Skipped++
			continue
		}
		pending = append(pending, l)
	}
	if len(pending) == 0 {
		return res, nil
	}

	records := make([]map[string]any, len(pending))
	for i, l := range pending {
		records[i] = Fields(l)
	}

	results, err := salesforce.BulkCreateLeads(ctx, s.sf, records)
	for i, r := range results {
		l := pending[i]
		if !r.Success {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", l.ID, strings.Join(r.Errors, ", ")))
			continue
		}
		if recErr := s.record(ctx, l.ID, r.ID); recErr != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", l.ID, recErr))
			continue
		}
		res.Created++
	}
	if err != nil {
		res.Failed += len(pending) - len(results)
		return res, eris.Wrap(err, "leads: sync all")
	}

	zap.L().Info("leads: bulk sync complete",
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Syncer) record(ctx context.Context, leadID, sfID string) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SetLeadSalesforceID(ctx, leadID, sfID); err != nil {
		return eris.Wrapf(err, "leads: record salesforce id for %s", leadID)
	}
	return nil
}

// Fields maps a lead onto Salesforce Lead fields. Salesforce requires
// LastName and Company, so both fall back to placeholders.
func Fields(l model.Lead) map[string]any {
	first, last := splitName(l.ContactName)
	if last == "" {
		last = "Unknown"
	}
	company := l.CompanyName
	if company == "" {
		company = "Unknown"
	}

	fields := map[string]any{
		"FirstName":   first,
		"LastName":    last,
		"Company":     company,
		"Email":       l.Email,
		"LeadSource":  LeadSource,
		"Description": describe(l),
	}
	if l.Phone != "" {
		fields["Phone"] = l.Phone
	}
	if l.Industry != "" {
		fields["Industry"] = l.Industry
	}
	if len(l.OperatingStates) > 0 {
		fields["State"] = l.OperatingStates[0]
	}
	return fields
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func describe(l model.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compliance score %.1f%% (%s).", l.OverallPercentage, Rating(l.OverallRiskTier))
	if len(l.HighRiskCategories) > 0 {
		fmt.Fprintf(&b, " High risk: %s.", strings.Join(l.HighRiskCategories, ", "))
	}
	if l.CompanySize != "" {
		fmt.Fprintf(&b, " Employees: %s.", l.CompanySize)
	}
	if len(l.OperatingStates) > 0 {
		fmt.Fprintf(&b, " States: %s.", strings.Join(l.OperatingStates, ", "))
	}
	return b.String()
}
