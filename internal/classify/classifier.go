// Package classify assigns category fields to normalized records and derives
// their payment-channel columns.
package classify

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/values"
)

// Classifier applies an ordered rule list. It holds no mutable state.
type Classifier struct {
	rules    []compiledRule
	channels ChannelMarkers
}

type compiledRule struct {
	rule     *domain.ClassificationRule
	keywords []string // lower-cased
}

// New creates a Classifier. Rules are evaluated in slice order.
func New(rules []domain.ClassificationRule, markers ChannelMarkers) *Classifier {
	compiled := make([]compiledRule, 0, len(rules))
	for i := range rules {
		kws := make([]string, 0, len(rules[i].Keywords))
		for _, k := range rules[i].Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		compiled = append(compiled, compiledRule{rule: &rules[i], keywords: kws})
	}
	if len(markers.Card) == 0 && len(markers.Account) == 0 {
		markers = DefaultChannelMarkers()
	}
	return &Classifier{rules: compiled, channels: markers}
}

// Match returns the first rule any of whose keywords is a case-insensitive
// substring of description, or nil.
func (c *Classifier) Match(description string) *domain.ClassificationRule {
	desc := strings.ToLower(description)
	for _, cr := range c.rules {
		for _, kw := range cr.keywords {
			if strings.Contains(desc, kw) {
				return cr.rule
			}
		}
	}
	return nil
}

// Classify enriches records in place: category fields from the first matching
// rule, then the display date and payment channel. Records that already carry
// categories keep them.
func (c *Classifier) Classify(ctx context.Context, records []*domain.TransactionRecord) {
	log := logger.FromContext(ctx)
	matched := 0
	for _, rec := range records {
		if !rec.IsClassified() {
			if rule := c.Match(rec.RawDescription); rule != nil {
				rule.Updates.Apply(rec)
				matched++
			}
		}
		rec.DisplayDate = values.DisplayDate(rec.Date)
		c.channels.Apply(rec)
	}
	log.Debug().
		Int("records", len(records)).
		Int("matched", matched).
		Msg("Records classified")
}
