package engine

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/compliance-cli/internal/bank"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Catalog maps a category id to its remediation recommendations, most
// important first. It is data so a jurisdiction can swap it without touching
// the scoring code.
type Catalog struct {
	entries map[string][]string
}

// NewCatalog copies m into a catalog.
func NewCatalog(m map[string][]string) *Catalog {
	c := &Catalog{entries: make(map[string][]string, len(m))}
	for k, v := range m {
		c.entries[k] = append([]string(nil), v...)
	}
	return c
}

// ParseCatalog decodes a YAML mapping of category id to recommendation list.
func ParseCatalog(data []byte) (*Catalog, error) {
	var m map[string][]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "engine: parse catalog")
	}
	return NewCatalog(m), nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// Entries returns the full recommendation list for a category.
func (c *Catalog) Entries(category string) []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.entries[category]...)
}

// Missing lists bank categories that have no recommendations.
func (c *Catalog) Missing(b *bank.Bank) []string {
	var out []string
	for _, cat := range b.Categories() {
		if c == nil || len(c.entries[cat.ID]) == 0 {
			out = append(out, cat.ID)
		}
	}
	return out
}
