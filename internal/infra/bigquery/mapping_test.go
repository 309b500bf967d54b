package bigquery

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

func TestNewTransactionRow_Card(t *testing.T) {
	amount := 36411.0
	rec := &domain.TransactionRecord{
		ID:             "rec-1",
		Date:           "2025-01-15",
		Time:           "13:20",
		Amount:         amount,
		RawDescription: "AWS",
		Item:           "클라우드",
		CategoryDetail: "지급수수료",
		CategoryMain:   "판매관리비",
		RawSource:      "신한카드",
		RawFilename:    "card.xls",
		CardAmount:     &amount,
		CardDetail:     "신한카드",
	}
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	row, err := NewTransactionRow(rec, "doc-1", "run-1", now)

	require.NoError(t, err)
	assert.Equal(t, "rec-1", row.TransactionID)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 15}, row.TransactionDate)
	assert.Equal(t, "36411", row.Amount.FloatString(0))
	assert.Equal(t, "KRW", row.Currency)
	assert.True(t, row.BookingDatetime.Valid)
	assert.Equal(t, 13, row.BookingDatetime.DateTime.Time.Hour)
	assert.Equal(t, 20, row.BookingDatetime.DateTime.Time.Minute)
	assert.Equal(t, "card", row.PaymentChannel.StringVal)
	assert.Equal(t, "신한카드", row.ChannelDetail.StringVal)
	assert.Equal(t, "클라우드", row.NormalizedDescription.StringVal)
	assert.False(t, row.CategoryMSO.Valid)
	assert.Equal(t, now, row.CreatedTS)
}

func TestNewTransactionRow_RoundsToCents(t *testing.T) {
	rec := &domain.TransactionRecord{ID: "x", Date: "2025-01-01", Amount: 12.345}

	row, err := NewTransactionRow(rec, "", "", time.Now())

	require.NoError(t, err)
	assert.Equal(t, "12.35", row.Amount.FloatString(2))
	assert.False(t, row.BookingDatetime.Valid)
	assert.False(t, row.PaymentChannel.Valid)
}

func TestNewTransactionRow_RawDate(t *testing.T) {
	rec := &domain.TransactionRecord{ID: "x", Date: "어제"}

	_, err := NewTransactionRow(rec, "", "", time.Now())

	require.ErrorIs(t, err, ErrUnparsedDate)
}

func TestRecordFromRow_RoundTripsChannel(t *testing.T) {
	amount := 1200000.0
	rec := &domain.TransactionRecord{
		ID:             "x",
		Date:           "2025-03-31",
		Amount:         amount,
		RawDescription: "임대료",
		RawSource:      "우리은행 계좌",
		TransferAmount: &amount,
		AccountLabel:   "우리은행 계좌",
	}
	row, err := NewTransactionRow(rec, "d", "r", time.Now())
	require.NoError(t, err)

	got := RecordFromRow(row)

	assert.Equal(t, "2025-03-31", got.Date)
	assert.Equal(t, "2025.03.31", got.DisplayDate)
	assert.Equal(t, amount, got.Amount)
	assert.Equal(t, domain.ChannelTransfer, got.Channel())
	assert.Equal(t, "우리은행 계좌", got.AccountLabel)
	assert.Nil(t, got.CardAmount)
	assert.Empty(t, got.Time)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"13:20", true},
		{"09:05:07", true},
		{" 23:59 ", true},
		{"", false},
		{"1320", false},
		{"25:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := parseClock(tt.in)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNewDocumentRow(t *testing.T) {
	def := &domain.SourceDefinition{Type: domain.SourceCardStatement, Name: "신한카드"}
	now := time.Now()

	row := NewDocumentRow("gs://b/card.xls", "card.xls", "application/vnd.ms-excel", []byte("abc"), def, now)

	assert.NotEmpty(t, row.DocumentID)
	assert.Equal(t, "card_statement", row.DocumentType)
	assert.Equal(t, "신한카드", row.SourceSystem)
	assert.Equal(t, DocumentStatusPending, row.ParsingStatus)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", row.ChecksumSHA256)

	unknown := NewDocumentRow("gs://b/x.xls", "x.xls", "", nil, nil, now)
	assert.Equal(t, DocumentStatusUnidentified, unknown.ParsingStatus)
	assert.Equal(t, "unknown", unknown.DocumentType)
}

func TestBatches(t *testing.T) {
	rows := make([]*TransactionRow, 1201)

	got := batches(rows, insertBatchSize)

	require.Len(t, got, 3)
	assert.Len(t, got[0], 500)
	assert.Len(t, got[2], 201)
	assert.Empty(t, batches(nil, insertBatchSize))
}

func TestTruncateUTF8(t *testing.T) {
	// Hangul runes are 3 bytes, so a 2000-byte cut lands inside one.
	msg := "파일 " + strings.Repeat("거래", 1000)

	got := truncateUTF8(msg, maxErrorMessage)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxErrorMessage)
	assert.Greater(t, len(got), maxErrorMessage-utf8.UTFMax)
	assert.Equal(t, "short", truncateUTF8("short", maxErrorMessage))
}
