package bigquery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/values"
)

// Currency is the currency every normalized amount is recorded in.
const Currency = "KRW"

// ErrUnparsedDate is returned for records whose date stayed in raw form.
var ErrUnparsedDate = errors.New("record date is not YYYY-MM-DD")

// NewTransactionRow maps a classified record onto the transactions schema.
func NewTransactionRow(rec *domain.TransactionRecord, documentID, parsingRunID string, now time.Time) (*TransactionRow, error) {
	date, err := civil.ParseDate(rec.Date)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRow: %q: %w", rec.Date, ErrUnparsedDate)
	}

	row := &TransactionRow{
		TransactionID:         rec.ID,
		DocumentID:            documentID,
		ParsingRunID:          parsingRunID,
		TransactionDate:       date,
		Amount:                decimal.NewFromFloat(rec.Amount).Round(2).Rat(),
		Currency:              Currency,
		RawDescription:        rec.RawDescription,
		NormalizedDescription: nullString(rec.Item),
		CategoryName:          nullString(rec.CategoryMain),
		SubcategoryName:       nullString(rec.CategoryDetail),
		CategoryMSO:           nullString(rec.CategoryMSO),
		PaymentChannel:        nullString(string(rec.Channel())),
		SourceName:            rec.RawSource,
		SourceFilename:        rec.RawFilename,
		CreatedTS:             now,
	}

	if t, ok := parseClock(rec.Time); ok {
		row.BookingDatetime = bigquery.NullDateTime{
			DateTime: civil.DateTime{Date: date, Time: t},
			Valid:    true,
		}
	}

	switch rec.Channel() {
	case domain.ChannelCard:
		row.ChannelDetail = nullString(rec.CardDetail)
	case domain.ChannelTransfer:
		row.ChannelDetail = nullString(rec.AccountLabel)
	}

	return row, nil
}

// RecordFromRow maps a stored row back to a record.
func RecordFromRow(row *TransactionRow) *domain.TransactionRecord {
	amount := 0.0
	if row.Amount != nil {
		amount = decimal.NewFromBigRat(row.Amount, 2).InexactFloat64()
	}

	date := row.TransactionDate.String()
	rec := &domain.TransactionRecord{
		ID:             row.TransactionID,
		Date:           date,
		DisplayDate:    values.DisplayDate(date),
		Amount:         amount,
		RawDescription: row.RawDescription,
		Item:           row.NormalizedDescription.StringVal,
		CategoryMain:   row.CategoryName.StringVal,
		CategoryDetail: row.SubcategoryName.StringVal,
		CategoryMSO:    row.CategoryMSO.StringVal,
		RawSource:      row.SourceName,
		RawFilename:    row.SourceFilename,
	}
	if row.BookingDatetime.Valid {
		rec.Time = row.BookingDatetime.DateTime.Time.String()
	}

	switch domain.Channel(row.PaymentChannel.StringVal) {
	case domain.ChannelCard:
		rec.CardAmount = &amount
		rec.CardDetail = row.ChannelDetail.StringVal
	case domain.ChannelTransfer:
		rec.TransferAmount = &amount
		rec.AccountLabel = row.ChannelDetail.StringVal
	case domain.ChannelCash:
		rec.CashAmount = &amount
	}
	return rec
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(s string) (civil.Time, bool) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	t, err := civil.ParseTime(s)
	if err != nil {
		return civil.Time{}, false
	}
	return t, true
}
