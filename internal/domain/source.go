// Package domain holds the types shared by the identification, normalization
// and classification stages.
package domain

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceType selects the normalization mode for a definition.
type SourceType string

const (
	SourceCardStatement    SourceType = "card_statement"
	SourceAccountStatement SourceType = "account_statement"
	SourcePayrollSummary   SourceType = "payroll_summary"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceCardStatement, SourceAccountStatement, SourcePayrollSummary:
		return true
	}
	return false
}

// Field is a logical column independent of a document's header wording.
type Field string

const (
	FieldDate           Field = "date"
	FieldTime           Field = "time"
	FieldDescription    Field = "description"
	FieldAmount         Field = "amount"
	FieldAmountAlt      Field = "amount_alt"
	FieldNetPayment     Field = "net_payment"
	FieldTotalDeduction Field = "total_deduction"
)

// SourceDefinition fingerprints one institution's export layout.
type SourceDefinition struct {
	Type       SourceType            `yaml:"type" json:"type"`
	Name       string                `yaml:"name" json:"name"`
	Signatures []string              `yaml:"signatures" json:"signatures"`
	Mapping    map[Field]HeaderNames `yaml:"mapping" json:"mapping"`
}

// HeaderNames is an ordered list of acceptable header names for a field,
// highest priority first. In YAML it may be written as a single string.
type HeaderNames []string

// UnmarshalYAML accepts a scalar or a sequence.
func (h *HeaderNames) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*h = HeaderNames{value.Value}
		return nil
	}
	var names []string
	if err := value.Decode(&names); err != nil {
		return err
	}
	*h = names
	return nil
}

// Candidates returns the ordered header names configured for f.
func (d *SourceDefinition) Candidates(f Field) []string {
	if d == nil || d.Mapping == nil {
		return nil
	}
	return []string(d.Mapping[f])
}

// Validate checks that the definition can be matched and normalized.
func (d *SourceDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("source definition has no name")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("source %q: unknown type %q", d.Name, d.Type)
	}
	if len(d.Signatures) == 0 {
		return fmt.Errorf("source %q: no signatures", d.Name)
	}
	for _, s := range d.Signatures {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("source %q: empty signature keyword", d.Name)
		}
	}
	return nil
}
