package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-normalizer/internal/export"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

type uploaded struct {
	bucket, object, contentType string
	data                        []byte
}

func storageWith(data string, up *uploaded) *MockStorageService {
	return &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return []byte(data), nil
		},
		UploadBytesFunc: func(ctx context.Context, bucket, object, contentType string, b []byte) (string, error) {
			*up = uploaded{bucket: bucket, object: object, contentType: contentType, data: b}
			return "gs://" + bucket + "/" + object, nil
		},
	}
}

func TestIngest_CardStatement(t *testing.T) {
	var up uploaded
	var doc *infra.DocumentRow
	var inserted []*infra.TransactionRow
	var succeeded int
	var finalStatus string

	repo := &MockDocumentRepository{
		InsertDocumentFunc: func(ctx context.Context, row *infra.DocumentRow) error {
			doc = row
			return nil
		},
		StartParsingRunFunc: func(ctx context.Context, documentID string) (string, error) {
			assert.Equal(t, doc.DocumentID, documentID)
			return "run-1", nil
		},
		InsertTransactionsFunc: func(ctx context.Context, rows []*infra.TransactionRow) error {
			inserted = rows
			return nil
		},
		MarkParsingRunSucceededFunc: func(ctx context.Context, parsingRunID string, recordCount int) error {
			succeeded = recordCount
			return nil
		},
		MarkDocumentProcessedFunc: func(ctx context.Context, documentID, status, outputURI string) error {
			finalStatus = status
			assert.Equal(t, "gs://statements/converted/2025/01/shinhan.xlsx", outputURI)
			return nil
		},
		MarkParsingRunFailedFunc: func(ctx context.Context, parsingRunID string, parseErr error) {
			t.Errorf("unexpected failure: %v", parseErr)
		},
	}

	ingestor := pipeline.NewIngestor(newService(t, pipeline.Options{}), storageWith(cardCSV, &up), repo, "")
	res, err := ingestor.Ingest(context.Background(), "gs://statements/2025/01/shinhan.csv")

	require.NoError(t, err)
	assert.Equal(t, "신한카드", res.Source)
	assert.Equal(t, "run-1", res.ParsingRunID)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, "gs://statements/converted/2025/01/shinhan.xlsx", res.OutputURI)

	require.NotNil(t, doc)
	assert.Equal(t, "신한카드", doc.SourceSystem)
	assert.Equal(t, "shinhan.csv", doc.OriginalFilename)
	require.Len(t, inserted, 2)
	assert.Equal(t, "run-1", inserted[0].ParsingRunID)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, infra.DocumentStatusProcessed, finalStatus)

	assert.Equal(t, "statements", up.bucket)
	f, err := excelize.OpenReader(bytes.NewReader(up.data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.RecordsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestIngest_WithoutRepository(t *testing.T) {
	var up uploaded
	ingestor := pipeline.NewIngestor(newService(t, pipeline.Options{}), storageWith(payrollCSV, &up), nil, "outputs")

	res, err := ingestor.Ingest(context.Background(), "gs://in/급여대장.csv")

	require.NoError(t, err)
	assert.Equal(t, "outputs", up.bucket)
	assert.Equal(t, "converted/급여대장.xlsx", up.object)
	assert.Len(t, res.Records, 3)
	assert.Empty(t, res.DocumentID)
	assert.Zero(t, res.Inserted)
}

func TestIngest_UnidentifiedRecordsFailure(t *testing.T) {
	var up uploaded
	var status string
	startCalled := false
	repo := &MockDocumentRepository{
		StartParsingRunFunc: func(ctx context.Context, documentID string) (string, error) {
			startCalled = true
			return "run", nil
		},
		MarkDocumentProcessedFunc: func(ctx context.Context, documentID, s, outputURI string) error {
			status = s
			return nil
		},
	}

	ingestor := pipeline.NewIngestor(newService(t, pipeline.Options{}), storageWith(unknownCSV, &up), repo, "")
	res, err := ingestor.Ingest(context.Background(), "gs://in/unknown.csv")

	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.False(t, startCalled)
	assert.Equal(t, infra.DocumentStatusUnidentified, status)

	f, err := excelize.OpenReader(bytes.NewReader(up.data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{export.RecordsSheet, export.FailuresSheet}, f.GetSheetList())
}

func TestIngest_InsertFailureMarksRunFailed(t *testing.T) {
	var up uploaded
	var failedRun, docStatus string
	repo := &MockDocumentRepository{
		StartParsingRunFunc: func(ctx context.Context, documentID string) (string, error) {
			return "run-9", nil
		},
		InsertTransactionsFunc: func(ctx context.Context, rows []*infra.TransactionRow) error {
			return errors.New("quota exceeded")
		},
		MarkParsingRunFailedFunc: func(ctx context.Context, parsingRunID string, parseErr error) {
			failedRun = parsingRunID
		},
		MarkDocumentProcessedFunc: func(ctx context.Context, documentID, status, outputURI string) error {
			docStatus = status
			return nil
		},
	}

	ingestor := pipeline.NewIngestor(newService(t, pipeline.Options{}), storageWith(cardCSV, &up), repo, "")
	_, err := ingestor.Ingest(context.Background(), "gs://in/card.csv")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, "run-9", failedRun)
	assert.Equal(t, infra.DocumentStatusFailed, docStatus)
	assert.Nil(t, up.data)
}

func TestIngest_ReingestSupersedesPreviousRuns(t *testing.T) {
	var up uploaded
	var superseded string
	insertCalled := false
	repo := &MockDocumentRepository{
		FindDocumentByChecksumFunc: func(ctx context.Context, checksum string) (*infra.DocumentRow, error) {
			assert.Equal(t, infra.Checksum([]byte(cardCSV)), checksum)
			return &infra.DocumentRow{DocumentID: "doc-old"}, nil
		},
		MarkParsingRunsAsSupersededFunc: func(ctx context.Context, documentID string) error {
			superseded = documentID
			return nil
		},
		InsertDocumentFunc: func(ctx context.Context, row *infra.DocumentRow) error {
			insertCalled = true
			return nil
		},
	}

	ingestor := pipeline.NewIngestor(newService(t, pipeline.Options{}), storageWith(cardCSV, &up), repo, "")
	res, err := ingestor.Ingest(context.Background(), "gs://in/card.csv")

	require.NoError(t, err)
	assert.Equal(t, "doc-old", superseded)
	assert.Equal(t, "doc-old", res.DocumentID)
	assert.False(t, insertCalled)
}

func TestIngest_FetchError(t *testing.T) {
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return nil, errors.New("object not found")
		},
	}
	ingestor := pipeline.NewIngestor(newService(t, pipeline.Options{}), storage, &MockDocumentRepository{}, "")

	_, err := ingestor.Ingest(context.Background(), "gs://in/missing.xls")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline step 1 failed")
}
