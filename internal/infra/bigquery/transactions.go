package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	DocumentID   string `bigquery:"document_id"`    // NULLABLE
	ParsingRunID string `bigquery:"parsing_run_id"` // NULLABLE

	TransactionDate civil.Date            `bigquery:"transaction_date"` // REQUIRED in schema
	BookingDatetime bigquery.NullDateTime `bigquery:"booking_datetime"` // NULLABLE

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	RawDescription        string              `bigquery:"raw_description"`        // REQUIRED STRING
	NormalizedDescription bigquery.NullString `bigquery:"normalized_description"` // NULLABLE: classified item

	CategoryName    bigquery.NullString `bigquery:"category_name"`    // NULLABLE: main category
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name"` // NULLABLE: detail category
	CategoryMSO     bigquery.NullString `bigquery:"category_mso"`     // NULLABLE

	PaymentChannel bigquery.NullString `bigquery:"payment_channel"` // NULLABLE: cash, card or transfer
	ChannelDetail  bigquery.NullString `bigquery:"channel_detail"`  // NULLABLE: card or account label

	SourceName     string `bigquery:"source_name"`     // REQUIRED
	SourceFilename string `bigquery:"source_filename"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
