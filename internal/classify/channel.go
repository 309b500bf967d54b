package classify

import (
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

// ChannelMarkers are the source-name substrings that select a payment channel.
// Matching is case-insensitive.
type ChannelMarkers struct {
	Card    []string `yaml:"card" json:"card"`
	Account []string `yaml:"account" json:"account"`
}

// DefaultChannelMarkers returns the Korean and English card/account markers.
func DefaultChannelMarkers() ChannelMarkers {
	return ChannelMarkers{
		Card:    []string{"카드", "card"},
		Account: []string{"계좌", "account"},
	}
}

// ChannelFor routes a source name to exactly one channel. The card check runs
// first, so a name carrying both markers is a card.
func (m ChannelMarkers) ChannelFor(source string) domain.Channel {
	s := strings.ToLower(source)
	switch {
	case containsAny(s, m.Card):
		return domain.ChannelCard
	case containsAny(s, m.Account):
		return domain.ChannelTransfer
	default:
		return domain.ChannelCash
	}
}

// Apply resets the channel columns of rec and populates exactly one group.
func (m ChannelMarkers) Apply(rec *domain.TransactionRecord) {
	rec.CashAmount, rec.CardAmount, rec.TransferAmount = nil, nil, nil
	rec.CardDetail, rec.AccountLabel = "", ""

	amount := rec.Amount
	switch m.ChannelFor(rec.RawSource) {
	case domain.ChannelCard:
		rec.CardAmount = &amount
		rec.CardDetail = rec.RawSource
	case domain.ChannelTransfer:
		rec.TransferAmount = &amount
		rec.AccountLabel = rec.RawSource
	default:
		rec.CashAmount = &amount
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
