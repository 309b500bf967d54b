package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"
	dateFormat        = "2006-01-02"

	// insertBatchSize keeps each streaming insert request well under the
	// 10 MB request limit for large statements.
	insertBatchSize = 500
)

// InsertTransactionsWithClient streams rows into <dataset>.transactions in
// batches of insertBatchSize.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*TransactionRow) error {
	inserter := client.Dataset(dataset).Table(transactionsTable).Inserter()
	for _, batch := range batches(rows, insertBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
		}
	}
	return nil
}

func batches(rows []*TransactionRow, size int) [][]*TransactionRow {
	var out [][]*TransactionRow
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

// QueryTransactionsByDateRangeWithClient queries transactions within the
// specified date range. Only transactions from successful parsing runs are
// returned; superseded runs are excluded.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, dataset string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.document_id,
			t.parsing_run_id,
			t.transaction_date,
			t.booking_datetime,
			t.amount,
			t.currency,
			t.raw_description,
			t.normalized_description,
			t.category_name,
			t.subcategory_name,
			t.category_mso,
			t.payment_channel,
			t.channel_detail,
			t.source_name,
			t.source_filename,
			t.created_ts
		FROM %[1]s.%[2]s t
		INNER JOIN %[1]s.%[3]s pr
		  ON t.parsing_run_id = pr.parsing_run_id
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND pr.status = @status
		ORDER BY t.transaction_date, t.created_ts
	`, dataset, transactionsTable, parsingRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
		{Name: "status", Value: RunStatusSuccess},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
