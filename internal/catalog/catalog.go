// Package catalog loads the source definitions and classification rules.
// A catalog is immutable once loaded and is shared across goroutines.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/statement-normalizer/internal/classify"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/normalize"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the static configuration the pipeline is built from.
type Catalog struct {
	TotalsMarker string                      `yaml:"totals_marker" json:"totals_marker"`
	Sources      []domain.SourceDefinition   `yaml:"sources" json:"sources"`
	Channels     classify.ChannelMarkers     `yaml:"channels" json:"channels"`
	Payroll      normalize.PayrollPostings   `yaml:"payroll" json:"payroll"`
	Rules        []domain.ClassificationRule `yaml:"rules" json:"rules"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		return nil, fmt.Errorf("Default: parsing built-in catalog: %w", err)
	}
	return c, nil
}

// LoadFile reads a YAML catalog from path. Sections missing from the file are
// taken from the built-in catalog.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: opening %s: %w", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %s: %w", path, err)
	}

	base, err := Default()
	if err != nil {
		return nil, err
	}
	c.fillFrom(base)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("LoadFile: %s: %w", path, err)
	}
	return c, nil
}

// Load decodes a YAML catalog without applying defaults.
func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("Load: decoding yaml: %w", err)
	}
	return &c, nil
}

// fillFrom copies every section that is empty in c from base.
func (c *Catalog) fillFrom(base *Catalog) {
	if c.TotalsMarker == "" {
		c.TotalsMarker = base.TotalsMarker
	}
	if len(c.Sources) == 0 {
		c.Sources = base.Sources
	}
	if len(c.Channels.Card) == 0 && len(c.Channels.Account) == 0 {
		c.Channels = base.Channels
	}
	if c.Payroll == (normalize.PayrollPostings{}) {
		c.Payroll = base.Payroll
	}
	if c.Rules == nil {
		c.Rules = base.Rules
	}
}

// Validate rejects catalogs that could not identify or classify anything.
func (c *Catalog) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("catalog has no sources")
	}
	var errs []error
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[src.Name] {
			errs = append(errs, fmt.Errorf("duplicate source name %q", src.Name))
		}
		seen[src.Name] = true
	}
	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Source returns the definition named name, or nil.
func (c *Catalog) Source(name string) *domain.SourceDefinition {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}
