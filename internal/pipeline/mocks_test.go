package pipeline_test

import (
	"context"
	"time"

	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
)

// MockDocumentRepository is a mock implementation of DocumentRepository for testing.
type MockDocumentRepository struct {
	InsertDocumentFunc              func(ctx context.Context, row *infra.DocumentRow) error
	MarkDocumentProcessedFunc       func(ctx context.Context, documentID, status, outputURI string) error
	InsertTransactionsFunc          func(ctx context.Context, rows []*infra.TransactionRow) error
	StartParsingRunFunc             func(ctx context.Context, documentID string) (string, error)
	MarkParsingRunFailedFunc        func(ctx context.Context, parsingRunID string, parseErr error)
	MarkParsingRunSucceededFunc     func(ctx context.Context, parsingRunID string, recordCount int) error
	FindDocumentByChecksumFunc      func(ctx context.Context, checksum string) (*infra.DocumentRow, error)
	MarkParsingRunsAsSupersededFunc func(ctx context.Context, documentID string) error
}

func (m *MockDocumentRepository) InsertDocument(ctx context.Context, row *infra.DocumentRow) error {
	if m.InsertDocumentFunc != nil {
		return m.InsertDocumentFunc(ctx, row)
	}
	return nil
}

func (m *MockDocumentRepository) MarkDocumentProcessed(ctx context.Context, documentID, status, outputURI string) error {
	if m.MarkDocumentProcessedFunc != nil {
		return m.MarkDocumentProcessedFunc(ctx, documentID, status, outputURI)
	}
	return nil
}

func (m *MockDocumentRepository) InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error {
	if m.InsertTransactionsFunc != nil {
		return m.InsertTransactionsFunc(ctx, rows)
	}
	return nil
}

func (m *MockDocumentRepository) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	if m.StartParsingRunFunc != nil {
		return m.StartParsingRunFunc(ctx, documentID)
	}
	return "test-run-id", nil
}

func (m *MockDocumentRepository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error) {
	if m.MarkParsingRunFailedFunc != nil {
		m.MarkParsingRunFailedFunc(ctx, parsingRunID, parseErr)
	}
}

func (m *MockDocumentRepository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, recordCount int) error {
	if m.MarkParsingRunSucceededFunc != nil {
		return m.MarkParsingRunSucceededFunc(ctx, parsingRunID, recordCount)
	}
	return nil
}

func (m *MockDocumentRepository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*infra.TransactionRow, error) {
	// Not needed for pipeline tests
	return []*infra.TransactionRow{}, nil
}

func (m *MockDocumentRepository) ListAllDocuments(ctx context.Context) ([]*infra.DocumentRow, error) {
	return nil, nil
}

func (m *MockDocumentRepository) FindDocumentByChecksum(ctx context.Context, checksum string) (*infra.DocumentRow, error) {
	if m.FindDocumentByChecksumFunc != nil {
		return m.FindDocumentByChecksumFunc(ctx, checksum)
	}
	return nil, nil
}

func (m *MockDocumentRepository) MarkParsingRunsAsSuperseded(ctx context.Context, documentID string) error {
	if m.MarkParsingRunsAsSupersededFunc != nil {
		return m.MarkParsingRunsAsSupersededFunc(ctx, documentID)
	}
	return nil
}

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytesFunc  func(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error) {
	if m.UploadBytesFunc != nil {
		return m.UploadBytesFunc(ctx, bucketName, objectName, contentType, data)
	}
	return "gs://" + bucketName + "/" + objectName, nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			return uri[i+1:]
		}
	}
	return uri
}
