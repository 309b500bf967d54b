package pipeline

import (
	"context"

	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// DocumentRepository is re-exported so callers can mock the sink without
// importing the infra package.
type DocumentRepository = infra.DocumentRepository

// StorageService is an interface for storage operations.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// WorkbookReader turns raw file bytes into a header-less workbook.
type WorkbookReader interface {
	Read(ctx context.Context, filename string, data []byte) (*sheet.Workbook, error)
}
