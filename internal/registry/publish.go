package registry

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/pkg/notion"
)

// PublishResult counts the pages touched by PublishQuestionBank.
type PublishResult struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
}

// PublishQuestionBank mirrors a bank into a Notion question database. Pages
// are matched on the ID property: existing pages are updated, missing ones
// created, and active pages for questions no longer in the bank are
// deactivated rather than deleted.
func PublishQuestionBank(ctx context.Context, client notion.Client, dbID string, b *bank.Bank) (PublishResult, error) {
	var res PublishResult

	pages, err := notion.QueryAll(ctx, client, dbID, nil)
	if err != nil {
		return res, eris.Wrap(err, "registry: list existing pages")
	}
	existing := make(map[string]notionapi.Page, len(pages))
	for _, p := range pages {
		if id := strings.TrimSpace(richText(p, PropID)); id != "" {
			existing[id] = p
		}
	}

	for i, q := range b.Questions() {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "registry: publish cancelled")
		}
		props := questionProperties(q, i+1)

		if p, ok := existing[q.ID]; ok {
			if _, err := client.UpdatePage(ctx, string(p.ID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
				return res, eris.Wrapf(err, "registry: update question %s", q.ID)
			}
			delete(existing, q.ID)
			res.Updated++
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		}
		if _, err := client.CreatePage(ctx, req); err != nil {
			return res, eris.Wrapf(err, "registry: create question %s", q.ID)
		}
		res.Created++
	}

	for id, p := range existing {
		if !checkbox(p, PropActive) {
			continue
		}
		req := &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{
				PropActive: notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: false},
			},
		}
		if _, err := client.UpdatePage(ctx, string(p.ID), req); err != nil {
			return res, eris.Wrapf(err, "registry: deactivate question %s", id)
		}
		res.Deactivated++
	}

	zap.L().Info("registry: published question bank",
		zap.String("bank_version", b.Version()),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("deactivated", res.Deactivated),
	)
	return res, nil
}

func questionProperties(q model.Question, order int) notionapi.Properties {
	return notionapi.Properties{
		PropID: richTextProp(q.ID),
		PropQuestion: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: notion.Text(q.Text),
		},
		PropCategory: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: q.Category},
		},
		PropWeight:        notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(q.Weight)},
		PropOrder:         notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: float64(order)},
		PropOptions:       richTextProp(FormatOptions(q.Options)),
		PropApplicability: richTextProp(FormatApplicability(q.Applicability)),
		PropDependsOn:     richTextProp(FormatDependsOn(q.Conditional)),
		PropHelp:          richTextProp(q.HelpText),
		PropInformational: notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: q.Informational},
		PropActive:        notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: true},
	}
}

// richTextProp clears the property when s is empty.
func richTextProp(s string) notionapi.RichTextProperty {
	rt := notion.Text(s)
	if rt == nil {
		rt = []notionapi.RichText{}
	}
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: rt}
}

func checkbox(p notionapi.Page, name string) bool {
	if prop, ok := p.Properties[name]; ok {
		if cp, ok := prop.(*notionapi.CheckboxProperty); ok {
			return cp.Checkbox
		}
	}
	return false
}
