package domain

import (
	"fmt"
)

// ClassificationRule assigns category fields to records whose description
// contains any of the keywords.
type ClassificationRule struct {
	Name     string      `yaml:"name" json:"name"`
	Keywords []string    `yaml:"keywords" json:"keywords"`
	Updates  RuleUpdates `yaml:"updates" json:"updates"`
}

// RuleUpdates is a partial update. Nil fields are left untouched.
// DescriptionOut is the older name for Item and is used only when Item is nil.
type RuleUpdates struct {
	Item           *string `yaml:"item,omitempty" json:"item,omitempty"`
	DescriptionOut *string `yaml:"description_out,omitempty" json:"description_out,omitempty"`
	CategoryDetail *string `yaml:"category_detail,omitempty" json:"category_detail,omitempty"`
	CategoryMain   *string `yaml:"category_main,omitempty" json:"category_main,omitempty"`
	CategoryMSO    *string `yaml:"category_mso,omitempty" json:"category_mso,omitempty"`
}

// Apply writes the present fields onto r.
func (u RuleUpdates) Apply(r *TransactionRecord) {
	switch {
	case u.Item != nil:
		r.Item = *u.Item
	case u.DescriptionOut != nil:
		r.Item = *u.DescriptionOut
	}
	if u.CategoryDetail != nil {
		r.CategoryDetail = *u.CategoryDetail
	}
	if u.CategoryMain != nil {
		r.CategoryMain = *u.CategoryMain
	}
	if u.CategoryMSO != nil {
		r.CategoryMSO = *u.CategoryMSO
	}
}

// Empty reports whether the update touches no field.
func (u RuleUpdates) Empty() bool {
	return u.Item == nil && u.DescriptionOut == nil && u.CategoryDetail == nil &&
		u.CategoryMain == nil && u.CategoryMSO == nil
}

// Validate rejects rules that can never match or never change anything.
func (r *ClassificationRule) Validate() error {
	if len(r.Keywords) == 0 {
		return fmt.Errorf("rule %q: no keywords", r.Name)
	}
	for _, k := range r.Keywords {
		if k == "" {
			return fmt.Errorf("rule %q: empty keyword", r.Name)
		}
	}
	if r.Updates.Empty() {
		return fmt.Errorf("rule %q: no updates", r.Name)
	}
	return nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
