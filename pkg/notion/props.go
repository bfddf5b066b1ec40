package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// Text wraps content as a single rich text run. Empty content yields nil.
func Text(content string) []notionapi.RichText {
	if content == "" {
		return nil
	}
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: content}, PlainText: content},
	}
}

// PlainText concatenates the plain_text values from a slice of RichText.
func PlainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}
