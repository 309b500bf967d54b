package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/classify"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/export"
	"github.com/dvloznov/statement-normalizer/internal/gcsuploader"
	"github.com/dvloznov/statement-normalizer/internal/identify"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/normalize"
	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Filename string
	Data     []byte

	Workbook       *sheet.Workbook
	Identification *domain.IdentificationResult
	Diagnostics    []string
	Records        []*domain.TransactionRecord

	// Ingestion only.
	GCSURI       string
	Result       *FileResult
	DocumentID   string
	ParsingRunID string
	Inserted     int
	OutputURI    string
}

// ReadWorkbookStep parses the raw bytes into a workbook.
type ReadWorkbookStep struct {
	Reader WorkbookReader
}

func (s *ReadWorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	wb, err := s.Reader.Read(ctx, state.Filename, state.Data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", state.Filename, err)
	}
	state.Workbook = wb
	return nil
}

// IdentifyStep finds the source layout. It returns *domain.IdentificationError
// when nothing matches.
type IdentifyStep struct {
	Identifier *identify.Identifier
}

func (s *IdentifyStep) Execute(ctx context.Context, state *PipelineState) error {
	res := s.Identifier.Identify(ctx, state.Workbook)
	state.Identification = res
	if !res.Matched() {
		return &domain.IdentificationError{Filename: state.Filename, Probe: res.Probe}
	}
	return nil
}

// NormalizeStep converts the identified sheet into records.
type NormalizeStep struct {
	Normalizer *normalize.Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	out, err := s.Normalizer.Normalize(ctx, state.Identification, state.Filename)
	if err != nil {
		return err
	}
	state.Records = out.Records
	state.Diagnostics = out.Diagnostics
	return nil
}

// ClassifyStep assigns categories and payment channels.
type ClassifyStep struct {
	Classifier *classify.Classifier
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	s.Classifier.Classify(ctx, state.Records)
	return nil
}

// FetchStep downloads the input file from GCS.
type FetchStep struct {
	Storage StorageService
}

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return err
	}
	state.Data = data
	state.Filename = s.Storage.ExtractFilenameFromGCSURI(state.GCSURI)
	return nil
}

// ConvertStep runs the per-file conversion. Identification failures are kept
// on the result so later steps can still record them.
type ConvertStep struct {
	Service *Service
}

func (s *ConvertStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Service.ProcessFile(ctx, state.Filename, state.Data)
	if err != nil {
		return err
	}
	state.Result = res
	state.Records = res.Records
	return nil
}

// RegisterDocumentStep creates the document row, or reuses the row of an
// identical earlier upload and supersedes its previous runs.
type RegisterDocumentStep struct {
	Repo DocumentRepository
	Now  func() time.Time
}

func (s *RegisterDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	checksum := infra.Checksum(state.Data)
	existing, err := s.Repo.FindDocumentByChecksum(ctx, checksum)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info().
			Str("document_id", existing.DocumentID).
			Str("filename", state.Filename).
			Msg("Document already ingested, superseding previous runs")
		if err := s.Repo.MarkParsingRunsAsSuperseded(ctx, existing.DocumentID); err != nil {
			return err
		}
		state.DocumentID = existing.DocumentID
		return nil
	}

	row := infra.NewDocumentRow(state.GCSURI, state.Filename, gcsuploader.ContentTypeFor(state.Filename), state.Data, state.Result.Definition, s.Now())
	if err := s.Repo.InsertDocument(ctx, row); err != nil {
		return err
	}
	state.DocumentID = row.DocumentID
	return nil
}

// StartParsingRunStep starts a parsing run (status=RUNNING) for identified files.
type StartParsingRunStep struct {
	Repo DocumentRepository
}

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result.Failure != nil {
		return nil
	}
	parsingRunID, err := s.Repo.StartParsingRun(ctx, state.DocumentID)
	if err != nil {
		return err
	}
	state.ParsingRunID = parsingRunID
	return nil
}

// InsertTransactionsStep writes the classified records. Records whose date
// could not be canonicalized are skipped with a warning.
type InsertTransactionsStep struct {
	Repo DocumentRepository
	Now  func() time.Time
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.ParsingRunID == "" {
		return nil
	}
	log := logger.FromContext(ctx)

	now := s.Now()
	rows := make([]*infra.TransactionRow, 0, len(state.Records))
	for _, rec := range state.Records {
		row, err := infra.NewTransactionRow(rec, state.DocumentID, state.ParsingRunID, now)
		if errors.Is(err, infra.ErrUnparsedDate) {
			log.Warn().
				Str("filename", state.Filename).
				Str("date", rec.Date).
				Str("description", rec.RawDescription).
				Msg("Skipping record with unparsed date")
			continue
		}
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if err := s.Repo.InsertTransactions(ctx, rows); err != nil {
		return err
	}
	state.Inserted = len(rows)
	return nil
}

// UploadOutputStep writes the output workbook next to the input under converted/.
type UploadOutputStep struct {
	Storage StorageService
	Bucket  string
}

func (s *UploadOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	bucket, object, err := gcsuploader.ParseGCSURI(state.GCSURI)
	if err != nil {
		return err
	}
	if s.Bucket != "" {
		bucket = s.Bucket
	}

	var failures []export.Failure
	if state.Result.Failure != nil {
		failures = append(failures, *state.Result.Failure)
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, state.Records, failures); err != nil {
		return err
	}

	uri, err := s.Storage.UploadBytes(ctx, bucket, gcsuploader.OutputObjectName(object), export.ContentType, buf.Bytes())
	if err != nil {
		return err
	}
	state.OutputURI = uri
	return nil
}

// MarkSuccessStep closes the parsing run and records the document outcome.
type MarkSuccessStep struct {
	Repo DocumentRepository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result.Failure != nil {
		return s.Repo.MarkDocumentProcessed(ctx, state.DocumentID, infra.DocumentStatusUnidentified, state.OutputURI)
	}
	if err := s.Repo.MarkParsingRunSucceeded(ctx, state.ParsingRunID, state.Inserted); err != nil {
		return err
	}
	return s.Repo.MarkDocumentProcessed(ctx, state.DocumentID, infra.DocumentStatusProcessed, state.OutputURI)
}
