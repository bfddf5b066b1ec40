package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/engine"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestFileBank(t *testing.T) {
	b, err := fileBank("")
	require.NoError(t, err)
	assert.Equal(t, "2024.1", b.Version())

	_, err = fileBank(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNotionVersion(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("AEST", 10*3600))
	assert.Equal(t, "notion-20240505T210809", notionVersion(at))
}

func TestInitEngine(t *testing.T) {
	b, err := bank.Default()
	require.NoError(t, err)

	withConfig(t, &config.Config{Engine: engine.DefaultConfig()})
	e, err := initEngine(b)
	require.NoError(t, err)
	assert.Equal(t, engine.TierHighRisk, e.IssueFloor())

	withConfig(t, &config.Config{Engine: config.EngineConfig{Aggregation: "median"}})
	_, err = initEngine(b)
	assert.Error(t, err)

	withConfig(t, &config.Config{Engine: config.EngineConfig{CatalogPath: filepath.Join(t.TempDir(), "none.yaml")}})
	_, err = initEngine(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load recommendation catalog")
}

func TestLoadBank_UnknownSource(t *testing.T) {
	withConfig(t, &config.Config{Bank: config.BankConfig{Source: "ftp"}})
	_, err := loadBank(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported bank source")
}

func TestLoadBank_NotionRequiresCredentials(t *testing.T) {
	withConfig(t, &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
		Bank:  config.BankConfig{Source: "notion"},
		Batch: config.BatchConfig{MaxConcurrency: 1},
	})
	_, err := loadBank(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
}

func TestInitRegistry(t *testing.T) {
	withConfig(t, &config.Config{Bank: config.BankConfig{Source: "file"}})
	reg, b, err := initRegistry(t.Context())
	require.NoError(t, err)
	assert.Same(t, b, reg.Current())
}

func TestFormatBank(t *testing.T) {
	b, err := bank.Default()
	require.NoError(t, err)

	var buf bytes.Buffer
	formatBank(&buf, b)
	out := buf.String()
	assert.Contains(t, out, "Bank 2024.1")
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "employee_docs")
	assert.Contains(t, out, "q1 ")
}

func TestBankValidateCommand(t *testing.T) {
	b, err := bank.Default()
	require.NoError(t, err)
	data, err := bank.Marshal(b)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	withConfig(t, &config.Config{Engine: engine.DefaultConfig()})
	var out bytes.Buffer
	bankValidateCmd.SetOut(&out)
	t.Cleanup(func() { bankValidateCmd.SetOut(nil) })

	require.NoError(t, bankValidateCmd.RunE(bankValidateCmd, []string{path}))
	assert.Contains(t, out.String(), "bank 2024.1 OK")
}
