package bigquery

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

// Document parsing statuses.
const (
	DocumentStatusPending      = "PENDING"
	DocumentStatusProcessed    = "PROCESSED"
	DocumentStatusFailed       = "FAILED"
	DocumentStatusUnidentified = "UNIDENTIFIED"
)

type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	GCSURI     string `bigquery:"gcs_uri"`     // REQUIRED

	DocumentType string `bigquery:"document_type"` // REQUIRED: source type
	SourceSystem string `bigquery:"source_system"` // NULLABLE: source definition name

	UploadTS    time.Time              `bigquery:"upload_ts"`    // REQUIRED
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"` // NULLABLE

	ParsingStatus string `bigquery:"parsing_status"` // NULLABLE

	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	FileMimeType     string `bigquery:"file_mime_type"`    // NULLABLE

	OutputGCSURI string `bigquery:"output_gcs_uri"` // NULLABLE

	ChecksumSHA256 string `bigquery:"checksum_sha256"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewDocumentRow describes an identified input file.
func NewDocumentRow(gcsURI, filename, mimeType string, data []byte, def *domain.SourceDefinition, now time.Time) *DocumentRow {
	row := &DocumentRow{
		DocumentID:       uuid.NewString(),
		GCSURI:           gcsURI,
		DocumentType:     "unknown",
		UploadTS:         now,
		ParsingStatus:    DocumentStatusPending,
		OriginalFilename: filename,
		FileMimeType:     mimeType,
		ChecksumSHA256:   Checksum(data),
	}
	if def != nil {
		row.DocumentType = string(def.Type)
		row.SourceSystem = def.Name
	} else {
		row.ParsingStatus = DocumentStatusUnidentified
	}
	return row
}
