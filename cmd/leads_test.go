package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/model"
)

func TestLeadFilterFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("since", "", "")
	fs.String("until", "", "")
	fs.StringSlice("states", nil, "")
	fs.String("min-score", "", "")
	fs.String("max-score", "", "")
	fs.String("status", "", "")
	fs.Int("limit", 0, "")
	require.NoError(t, fs.Parse([]string{
		"--since", "2024-05-01",
		"--until", "2024-05-31",
		"--states", "nsw,vic",
		"--min-score", "10",
		"--status", "qualified",
		"--limit", "5",
	}))

	f, err := leadFilterFromFlags(fs)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), f.Since)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), f.Until)
	assert.Equal(t, []string{"NSW", "VIC"}, f.States)
	require.NotNil(t, f.MinScore)
	assert.Equal(t, 10.0, *f.MinScore)
	assert.Nil(t, f.MaxScore)
	assert.Equal(t, model.LeadStatusQualified, f.Status)
	assert.Equal(t, 5, f.Limit)
}

func TestLeadFilterFromFlags_Invalid(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("status", "", "")
	require.NoError(t, fs.Parse([]string{"--status", "archived"}))

	_, err := leadFilterFromFlags(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestLeadsCommands_ShareFilterFlags(t *testing.T) {
	for _, c := range []*pflag.FlagSet{leadsListCmd.Flags(), leadsExportCmd.Flags(), leadsSyncCmd.Flags()} {
		for _, name := range []string{"since", "until", "states", "min-score", "max-score", "status", "limit"} {
			assert.NotNil(t, c.Lookup(name), name)
		}
	}
}

func TestFormatLeadsList(t *testing.T) {
	list := []model.Lead{
		{
			ID:                "abc12345-6789-0000-0000-000000000000",
			CompanyName:       "Acme Corporation International Holdings",
			Email:             "ops@acme.test",
			OperatingStates:   []string{"NSW", "VIC"},
			OverallPercentage: 42.25,
			OverallRiskTier:   engine.TierHighRisk,
			Status:            model.LeadStatusNew,
			SubmittedAt:       time.Date(2024, 5, 6, 23, 30, 0, 0, time.UTC),
			SalesforceID:      "00Q1",
		},
	}

	var buf bytes.Buffer
	formatLeadsList(&buf, list)
	out := buf.String()
	assert.Contains(t, out, "COMPANY")
	assert.Contains(t, out, "abc12345")
	assert.Contains(t, out, "Acme Corporation Internatio...")
	assert.Contains(t, out, "NSW,VIC")
	assert.Contains(t, out, "High Risk")
	assert.Contains(t, out, "2024-05-06 23:30")
	assert.Contains(t, out, "00Q1")
}
