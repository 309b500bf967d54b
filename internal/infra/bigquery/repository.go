// Package bigquery persists converted documents, parsing runs and
// transactions to BigQuery.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// DefaultDataset is used when no dataset is configured.
const DefaultDataset = "finance"

// DocumentRepository provides the document-related database operations the
// ingestion pipeline and the API need.
type DocumentRepository interface {
	// InsertDocument inserts a single DocumentRow into the database.
	InsertDocument(ctx context.Context, row *DocumentRow) error

	// MarkDocumentProcessed records the final status and output location of a document.
	MarkDocumentProcessed(ctx context.Context, documentID, status, outputURI string) error

	// InsertTransactions inserts a batch of TransactionRow into the database.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// StartParsingRun inserts a new parsing run with status=RUNNING and returns the parsing_run_id.
	StartParsingRun(ctx context.Context, documentID string) (string, error)

	// MarkParsingRunFailed sets status=FAILED, finished_ts and error_message for a parsing run.
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)

	// MarkParsingRunSucceeded sets status=SUCCESS, finished_ts and record_count for a parsing run.
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, recordCount int) error

	// QueryTransactionsByDateRange queries transactions within the specified date range.
	QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error)

	// ListAllDocuments retrieves all documents from the database.
	ListAllDocuments(ctx context.Context) ([]*DocumentRow, error)

	// FindDocumentByChecksum retrieves a document by its SHA-256 checksum.
	FindDocumentByChecksum(ctx context.Context, checksum string) (*DocumentRow, error)

	// MarkParsingRunsAsSuperseded marks all non-running parsing runs for a document as SUPERSEDED.
	MarkParsingRunsAsSuperseded(ctx context.Context, documentID string) error
}

// BigQueryDocumentRepository is the concrete implementation of DocumentRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryDocumentRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQueryDocumentRepository creates a new instance of BigQueryDocumentRepository
// with a shared BigQuery client. An empty projectID lets the client detect it
// from the environment.
func NewBigQueryDocumentRepository(ctx context.Context, projectID, dataset string) (*BigQueryDocumentRepository, error) {
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	if dataset == "" {
		dataset = DefaultDataset
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryDocumentRepository: creating client: %w", err)
	}
	return &BigQueryDocumentRepository{
		client:  client,
		dataset: dataset,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryDocumentRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertDocument delegates to InsertDocumentWithClient with the shared client.
func (r *BigQueryDocumentRepository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	return InsertDocumentWithClient(ctx, r.client, r.dataset, row)
}

// MarkDocumentProcessed delegates to MarkDocumentProcessedWithClient with the shared client.
func (r *BigQueryDocumentRepository) MarkDocumentProcessed(ctx context.Context, documentID, status, outputURI string) error {
	return MarkDocumentProcessedWithClient(ctx, r.client, r.dataset, documentID, status, outputURI)
}

// InsertTransactions delegates to InsertTransactionsWithClient with the shared client.
func (r *BigQueryDocumentRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

// StartParsingRun delegates to StartParsingRunWithClient with the shared client.
func (r *BigQueryDocumentRepository) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	return StartParsingRunWithClient(ctx, r.client, r.dataset, documentID)
}

// MarkParsingRunFailed delegates to MarkParsingRunFailedWithClient with the shared client.
func (r *BigQueryDocumentRepository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	MarkParsingRunFailedWithClient(ctx, r.client, r.dataset, parsingRunID, parseErr)
}

// MarkParsingRunSucceeded delegates to MarkParsingRunSucceededWithClient with the shared client.
func (r *BigQueryDocumentRepository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, recordCount int) error {
	return MarkParsingRunSucceededWithClient(ctx, r.client, r.dataset, parsingRunID, recordCount)
}

// QueryTransactionsByDateRange delegates to QueryTransactionsByDateRangeWithClient with the shared client.
func (r *BigQueryDocumentRepository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, startDate, endDate)
}

// ListAllDocuments delegates to ListAllDocumentsWithClient with the shared client.
func (r *BigQueryDocumentRepository) ListAllDocuments(ctx context.Context) ([]*DocumentRow, error) {
	return ListAllDocumentsWithClient(ctx, r.client, r.dataset)
}

// FindDocumentByChecksum delegates to FindDocumentByChecksumWithClient with the shared client.
func (r *BigQueryDocumentRepository) FindDocumentByChecksum(ctx context.Context, checksum string) (*DocumentRow, error) {
	return FindDocumentByChecksumWithClient(ctx, r.client, r.dataset, checksum)
}

// MarkParsingRunsAsSuperseded delegates to MarkParsingRunsAsSupersededWithClient with the shared client.
func (r *BigQueryDocumentRepository) MarkParsingRunsAsSuperseded(ctx context.Context, documentID string) error {
	return MarkParsingRunsAsSupersededWithClient(ctx, r.client, r.dataset, documentID)
}

var _ DocumentRepository = (*BigQueryDocumentRepository)(nil)
