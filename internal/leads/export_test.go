package leads

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/model"
)

func exportLeads() []model.Lead {
	return []model.Lead{
		{
			ID:                "l1",
			Email:             "ops@acme.test",
			CompanyName:       "Acme, Pty Ltd",
			OperatingStates:   []string{"NSW", "VIC"},
			OverallPercentage: 48.54,
			OverallRiskTier:   engine.TierHighRisk,
			SubmittedAt:       submittedAt,
			Status:            model.LeadStatusNew,
		},
		{
			ID:                "l2",
			Email:             "hr@beta.test",
			CompanyName:       "Beta",
			OverallPercentage: 91,
			OverallRiskTier:   engine.TierHealthy,
			SubmittedAt:       submittedAt,
			Status:            model.LeadStatusQualified,
		},
	}
}

func TestRating(t *testing.T) {
	assert.Equal(t, "High Risk", Rating(engine.TierHighRisk))
	assert.Equal(t, "Healthy", Rating(engine.TierHealthy))
	assert.Equal(t, "Critical", Rating(engine.TierCritical))
}

func TestRow(t *testing.T) {
	assert.Equal(t,
		[]string{"ops@acme.test", "Acme, Pty Ltd", "NSW, VIC", "48.5", "High Risk", "2024-05-06 23:30", "new"},
		Row(exportLeads()[0]),
	)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportLeads()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "Acme, Pty Ltd", records[1][1])
	assert.Equal(t, "", records[2][2])
	assert.Equal(t, "qualified", records[2][6])
}

func TestWriteCSV_NoLeadsWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Email,Company,States,Score,Rating,Started,Status\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, exportLeads()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet["Leads"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Email", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "ops@acme.test", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "High Risk", sheet.Rows[1].Cells[4].String())

	score, err := sheet.Rows[2].Cells[3].Float()
	require.NoError(t, err)
	assert.Equal(t, 91.0, score)
}
