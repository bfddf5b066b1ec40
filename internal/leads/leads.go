// Package leads turns scored assessments into sales leads and moves them to
// spreadsheets and Salesforce.
package leads

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/store"
)

// FromResult builds the lead for a scored submission. Categories whose tier is
// at or above floor are reported as high risk, in result order.
func FromResult(sub model.Submission, result *model.AssessmentResult, c *engine.Classifier, floor model.RiskTier) *model.Lead {
	lead := &model.Lead{
		ID:                 result.ID,
		CompanyName:        strings.TrimSpace(sub.CompanyName),
		ContactName:        strings.TrimSpace(sub.ContactName),
		Email:              strings.ToLower(strings.TrimSpace(sub.Email)),
		Phone:              strings.TrimSpace(sub.Phone),
		Industry:           strings.TrimSpace(sub.Industry),
		CompanySize:        companySize(sub.Profile),
		SubmittedAt:        result.SubmittedAt,
		OverallPercentage:  result.OverallPercentage,
		OverallRiskTier:    result.OverallRiskTier,
		HighRiskCategories: []string{},
		Status:             model.LeadStatusNew,
	}
	for _, r := range sub.Profile.Regions {
		if r = strings.ToUpper(strings.TrimSpace(r)); r != "" {
			lead.OperatingStates = append(lead.OperatingStates, r)
		}
	}
	for _, cs := range result.CategoryScores {
		if c.AtLeast(cs.RiskTier, floor) {
			lead.HighRiskCategories = append(lead.HighRiskCategories, cs.Name)
		}
	}
	return lead
}

func companySize(p model.BusinessProfile) string {
	if r := strings.TrimSpace(p.EmployeeRange); r != "" {
		return r
	}
	if p.EmployeeCount > 0 {
		return strconv.Itoa(p.EmployeeCount)
	}
	return ""
}

// ParseFilter reads lead filters from query parameters: since and until
// (YYYY-MM-DD or RFC 3339; a bare until date is inclusive), states
// (comma separated), min_score, max_score, status and limit.
func ParseFilter(q url.Values) (store.LeadFilter, error) {
	var f store.LeadFilter
	var errs []string

	if v := q.Get("since"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			errs = append(errs, "since: "+err.Error())
		}
		f.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			errs = append(errs, "until: "+err.Error())
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		f.Until = t
	}
	for _, raw := range q["states"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.States = append(f.States, strings.ToUpper(s))
			}
		}
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, "min_score must be a number")
		} else {
			f.MinScore = &n
		}
	}
	if v := q.Get("max_score"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, "max_score must be a number")
		} else {
			f.MaxScore = &n
		}
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		errs = append(errs, "min_score must not exceed max_score")
	}
	if v := q.Get("status"); v != "" {
		f.Status = model.LeadStatus(strings.ToLower(v))
		if !f.Status.Valid() {
			errs = append(errs, "unknown status "+strconv.Quote(v))
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, "limit must be a non-negative integer")
		}
		f.Limit = n
	}

	if len(errs) > 0 {
		return store.LeadFilter{}, eris.Errorf("leads: invalid filter: %s", strings.Join(errs, "; "))
	}
	return f, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, eris.Errorf("%q is not a date", s)
	}
	return t, false, nil
}
