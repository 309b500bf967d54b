package domain

import (
	"github.com/google/uuid"
)

// TransactionRecord is one normalized transaction produced from a spreadsheet
// row, or one synthetic entry produced from a payroll totals row.
// This is a domain struct, not a BigQuery row; the infra layer maps it into
// the finance.transactions table schema.
type TransactionRecord struct {
	ID             string  `json:"id"`
	Date           string  `json:"date"`           // YYYY-MM-DD, or the cleaned raw value when unparseable
	Time           string  `json:"time,omitempty"` // passthrough
	Amount         float64 `json:"amount"`
	RawDescription string  `json:"raw_description"` // write-once

	Item           string `json:"item"`
	CategoryDetail string `json:"category_detail"`
	CategoryMain   string `json:"category_main"`
	CategoryMSO    string `json:"category_mso"`

	RawSource   string `json:"raw_source"`
	RawFilename string `json:"raw_filename"`

	// Derived by the classifier from RawSource. Exactly one of the three
	// amounts is set after classification.
	DisplayDate    string   `json:"display_date"`
	CashAmount     *float64 `json:"cash_amount,omitempty"`
	CardAmount     *float64 `json:"card_amount,omitempty"`
	CardDetail     string   `json:"card_detail,omitempty"`
	TransferAmount *float64 `json:"transfer_amount,omitempty"`
	AccountLabel   string   `json:"account_label,omitempty"`
}

// NewTransactionRecord returns a record with a fresh id and provenance set.
// Classification fields are left blank.
func NewTransactionRecord(def *SourceDefinition, filename string) *TransactionRecord {
	return &TransactionRecord{
		ID:          uuid.NewString(),
		RawSource:   def.Name,
		RawFilename: filename,
	}
}

// IsClassified reports whether any category field has been assigned.
func (r *TransactionRecord) IsClassified() bool {
	return r.Item != "" || r.CategoryDetail != "" || r.CategoryMain != "" || r.CategoryMSO != ""
}

// Channel returns the populated payment channel, or "" before derivation.
func (r *TransactionRecord) Channel() Channel {
	switch {
	case r.CardAmount != nil:
		return ChannelCard
	case r.TransferAmount != nil:
		return ChannelTransfer
	case r.CashAmount != nil:
		return ChannelCash
	default:
		return ""
	}
}

// Channel is the payment method a record's amount is routed to.
type Channel string

const (
	ChannelCash     Channel = "cash"
	ChannelCard     Channel = "card"
	ChannelTransfer Channel = "transfer"
)
