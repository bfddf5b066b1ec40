package bank

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/compliance-cli/internal/model"
)

//go:embed default_bank.yaml
var defaultBankYAML []byte

// File is the on-disk YAML layout of a question bank.
type File struct {
	Version    string           `yaml:"version"`
	FullScale  int              `yaml:"full_scale,omitempty"`
	Categories []model.Category `yaml:"categories"`
	Questions  []model.Question `yaml:"questions"`
}

// Parse decodes a YAML bank document and validates it.
func Parse(data []byte) (*Bank, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "bank: parse yaml")
	}
	return f.Build()
}

// LoadFile reads and validates a YAML bank document from disk.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "bank: read %s", path)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "bank: load %s", path)
	}
	return b, nil
}

// Default returns the bank compiled into the binary.
func Default() (*Bank, error) {
	b, err := Parse(defaultBankYAML)
	if err != nil {
		return nil, eris.Wrap(err, "bank: load embedded default")
	}
	return b, nil
}

// Build validates the document and returns a snapshot.
func (f File) Build() (*Bank, error) {
	var opts []Option
	if f.FullScale != 0 {
		opts = append(opts, WithFullScale(f.FullScale))
	}
	return New(f.Version, f.Categories, f.Questions, opts...)
}

// Marshal renders a bank back to its YAML document form.
func Marshal(b *Bank) ([]byte, error) {
	out, err := yaml.Marshal(File{
		Version:    b.Version(),
		FullScale:  b.FullScale(),
		Categories: b.Categories(),
		Questions:  b.Questions(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "bank: marshal yaml")
	}
	return out, nil
}
