package bank

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
)

const sampleBank = `
version: test-1
full_scale: 5
categories:
  - {id: docs, name: Documentation, weight: 1}
questions:
  - id: q1
    category: docs
    text: Contracts?
    weight: 2
    applicability:
      kind: employee_count_at_least
      min_employees: 20
    options:
      - {id: q1_yes, text: "Yes", score: 5, risk_tag: healthy}
      - {id: q1_no, text: "No", score: 0, risk_tag: high_risk}
`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(sampleBank))
	require.NoError(t, err)

	assert.Equal(t, "test-1", b.Version())
	assert.Equal(t, 5, b.FullScale())

	q, ok := b.Question("q1")
	require.True(t, ok)
	require.NotNil(t, q.Applicability)
	assert.Equal(t, model.RuleEmployeeCountAtLeast, q.Applicability.Kind)
	assert.Equal(t, 20, q.Applicability.MinEmployees)
	assert.Equal(t, model.RiskTier("high_risk"), q.Option("q1_no").RiskTag)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bank: parse yaml")
}

func TestParse_InvalidBank(t *testing.T) {
	_, err := Parse([]byte("version: v1\ncategories: []\nquestions: [{id: q1, category: x, weight: 1}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBank), 0o600))

	b, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "test-1", b.Version())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 20, b.Len())
	assert.Len(t, b.Categories(), 5)

	order := b.Order()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["q17"], pos["q18"])

	info, ok := b.Question("q17")
	require.True(t, ok)
	assert.True(t, info.Informational)
}

func TestMarshal_RoundTrip(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	data, err := Marshal(b)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, b.Hash(), again.Hash())
}
