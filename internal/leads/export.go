package leads

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Header is the column layout shared by CSV and XLSX exports.
var Header = []string{"Email", "Company", "States", "Score", "Rating", "Started", "Status"}

const startedLayout = "2006-01-02 15:04"

var titleCaser = cases.Title(language.English)

// Rating renders a tier for people, e.g. "high_risk" -> "High Risk".
func Rating(t model.RiskTier) string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

// Row formats one lead in Header order. Times are shown in UTC.
func Row(l model.Lead) []string {
	return []string{
		l.Email,
		l.CompanyName,
		strings.Join(l.OperatingStates, ", "),
		fmt.Sprintf("%.1f", l.OverallPercentage),
		Rating(l.OverallRiskTier),
		l.SubmittedAt.UTC().Format(startedLayout),
		string(l.Status),
	}
}

// WriteCSV writes a header line and one line per lead.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "leads: write csv header")
	}
	for _, l := range leads {
		if err := cw.Write(Row(l)); err != nil {
			return eris.Wrapf(err, "leads: write csv row %s", l.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "leads: flush csv")
}

// WriteXLSX writes the leads to a single "Leads" sheet. Score is stored as a
// number so spreadsheets can sort and filter on it.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "leads: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		for i, v := range Row(l) {
			cell := row.AddCell()
			if Header[i] == "Score" {
				cell.SetFloatWithFormat(l.OverallPercentage, "0.0")
				continue
			}
			cell.SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "leads: write xlsx")
	}
	return nil
}
