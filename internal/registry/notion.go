// Package registry loads and publishes question banks kept in a Notion database.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/pkg/notion"
)

// Notion property names of the question database.
const (
	PropID            = "ID"
	PropQuestion      = "Question"
	PropCategory      = "Category"
	PropWeight        = "Weight"
	PropOrder         = "Order"
	PropOptions       = "Options"
	PropApplicability = "Applicability"
	PropDependsOn     = "Depends On"
	PropInformational = "Informational"
	PropHelp          = "Help"
	PropActive        = "Active"
)

// LoadQuestionBank queries the active questions of a Notion database, in
// Order, and builds a validated bank over the given categories. Pages that
// cannot be parsed are skipped with a warning; the bank itself must still
// validate.
func LoadQuestionBank(ctx context.Context, client notion.Client, dbID, version string, categories []model.Category, opts ...bank.Option) (*bank.Bank, error) {
	pages, err := notion.QueryActive(ctx, client, dbID, PropActive, PropOrder)
	if err != nil {
		return nil, eris.Wrap(err, "registry: load question bank")
	}

	questions := make([]model.Question, 0, len(pages))
	for _, p := range pages {
		q, err := parseQuestionPage(p)
		if err != nil {
			zap.L().Warn("registry: skipping malformed question page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		questions = append(questions, q)
	}

	zap.L().Info("registry: loaded questions from notion",
		zap.String("database_id", dbID),
		zap.Int("pages", len(pages)),
		zap.Int("questions", len(questions)),
	)

	b, err := bank.New(version, categories, questions, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build bank")
	}
	return b, nil
}

func parseQuestionPage(p notionapi.Page) (model.Question, error) {
	var q model.Question

	q.ID = strings.TrimSpace(richText(p, PropID))
	if prop, ok := p.Properties[PropQuestion]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			q.Text = strings.TrimSpace(notion.PlainText(tp.Title))
		}
	}
	if prop, ok := p.Properties[PropCategory]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			q.Category = sp.Select.Name
		}
	}
	if prop, ok := p.Properties[PropWeight]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			q.Weight = int(np.Number)
		}
	}
	if prop, ok := p.Properties[PropInformational]; ok {
		if cp, ok := prop.(*notionapi.CheckboxProperty); ok {
			q.Informational = cp.Checkbox
		}
	}
	q.HelpText = strings.TrimSpace(richText(p, PropHelp))

	if q.ID == "" {
		return q, eris.New("missing ID property")
	}
	if q.Text == "" {
		return q, eris.New("missing Question property")
	}

	var err error
	if q.Options, err = ParseOptions(richText(p, PropOptions)); err != nil {
		return q, err
	}
	if q.Applicability, err = ParseApplicability(richText(p, PropApplicability)); err != nil {
		return q, err
	}
	if q.Conditional, err = ParseDependsOn(richText(p, PropDependsOn)); err != nil {
		return q, err
	}
	return q, nil
}

func richText(p notionapi.Page, name string) string {
	prop, ok := p.Properties[name]
	if !ok {
		return ""
	}
	if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
		return notion.PlainText(rtp.RichText)
	}
	return ""
}

// ParseOptions reads one option per line as "id|text|score|risk". The text
// may itself contain '|'. Blank lines are ignored.
func ParseOptions(s string) ([]model.QuestionOption, error) {
	var opts []model.QuestionOption
	for i, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 4 {
			return nil, eris.Errorf("option line %d: want id|text|score|risk, got %q", i+1, line)
		}
		n := len(parts)
		score, err := strconv.Atoi(strings.TrimSpace(parts[n-2]))
		if err != nil {
			return nil, eris.Wrapf(err, "option line %d: score", i+1)
		}
		opts = append(opts, model.QuestionOption{
			ID:      strings.TrimSpace(parts[0]),
			Text:    strings.TrimSpace(strings.Join(parts[1:n-2], "|")),
			Score:   score,
			RiskTag: model.RiskTier(strings.TrimSpace(parts[n-1])),
		})
	}
	return opts, nil
}

// FormatOptions is the inverse of ParseOptions.
func FormatOptions(opts []model.QuestionOption) string {
	lines := make([]string, len(opts))
	for i, o := range opts {
		lines[i] = fmt.Sprintf("%s|%s|%d|%s", o.ID, o.Text, o.Score, o.RiskTag)
	}
	return strings.Join(lines, "\n")
}

// ParseApplicability reads "kind:argument", for example
// "employee_count_at_least:20", "region_in:NSW,VIC" or "boolean_flag:labour_hire".
// An empty string means the question always applies.
func ParseApplicability(s string) (*model.ApplicabilityRule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	kind, arg, ok := strings.Cut(s, ":")
	if !ok {
		return nil, eris.Errorf("applicability %q: want kind:argument", s)
	}
	arg = strings.TrimSpace(arg)
	rule := &model.ApplicabilityRule{Kind: model.RuleKind(strings.TrimSpace(kind))}
	switch rule.Kind {
	case model.RuleEmployeeCountAtLeast:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "applicability %q", s)
		}
		rule.MinEmployees = n
	case model.RuleRegionIn:
		for _, r := range strings.Split(arg, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rule.Regions = append(rule.Regions, r)
			}
		}
	case model.RuleBooleanFlag:
		rule.Flag = arg
	default:
		return nil, eris.Errorf("applicability %q: unknown kind", s)
	}
	return rule, nil
}

// FormatApplicability is the inverse of ParseApplicability.
func FormatApplicability(rule *model.ApplicabilityRule) string {
	if rule == nil {
		return ""
	}
	switch rule.Kind {
	case model.RuleEmployeeCountAtLeast:
		return fmt.Sprintf("%s:%d", rule.Kind, rule.MinEmployees)
	case model.RuleRegionIn:
		return fmt.Sprintf("%s:%s", rule.Kind, strings.Join(rule.Regions, ","))
	default:
		return fmt.Sprintf("%s:%s", rule.Kind, rule.Flag)
	}
}

// ParseDependsOn reads "question_id=option_id". Empty means unconditional.
func ParseDependsOn(s string) (*model.ConditionalRule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	qid, opt, ok := strings.Cut(s, "=")
	qid, opt = strings.TrimSpace(qid), strings.TrimSpace(opt)
	if !ok || qid == "" || opt == "" {
		return nil, eris.Errorf("depends on %q: want question_id=option_id", s)
	}
	return &model.ConditionalRule{DependsOn: qid, RequiredOption: opt}, nil
}

// FormatDependsOn is the inverse of ParseDependsOn.
func FormatDependsOn(rule *model.ConditionalRule) string {
	if rule == nil {
		return ""
	}
	return rule.DependsOn + "=" + rule.RequiredOption
}
