package pipeline

import (
	"context"
	"time"

	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
)

// Ingestor converts a file stored in GCS, uploads the output workbook and,
// when a repository is configured, records the run in BigQuery.
type Ingestor struct {
	service      *Service
	storage      StorageService
	repo         DocumentRepository
	outputBucket string
	now          func() time.Time
}

// NewIngestor creates an Ingestor. repo may be nil to skip BigQuery. An empty
// outputBucket writes next to the input.
func NewIngestor(service *Service, storage StorageService, repo DocumentRepository, outputBucket string) *Ingestor {
	return &Ingestor{
		service:      service,
		storage:      storage,
		repo:         repo,
		outputBucket: outputBucket,
		now:          time.Now,
	}
}

// IngestResult is the outcome of one ingestion.
type IngestResult struct {
	*FileResult
	GCSURI       string `json:"gcs_uri"`
	OutputURI    string `json:"output_uri"`
	DocumentID   string `json:"document_id,omitempty"`
	ParsingRunID string `json:"parsing_run_id,omitempty"`
	Inserted     int    `json:"inserted"`
}

// Ingest processes the file at gcsURI. A file with no known layout is not an
// error: its failure is recorded and the output holds only the failures sheet.
func (in *Ingestor) Ingest(ctx context.Context, gcsURI string) (*IngestResult, error) {
	ctx, log := logger.Scoped(ctx, "gcs_uri", gcsURI)

	steps := []PipelineStep{
		&FetchStep{Storage: in.storage},
		&ConvertStep{Service: in.service},
	}
	if in.repo != nil {
		steps = append(steps,
			&RegisterDocumentStep{Repo: in.repo, Now: in.now},
			&StartParsingRunStep{Repo: in.repo},
			&InsertTransactionsStep{Repo: in.repo, Now: in.now},
		)
	}
	steps = append(steps, &UploadOutputStep{Storage: in.storage, Bucket: in.outputBucket})
	if in.repo != nil {
		steps = append(steps, &MarkSuccessStep{Repo: in.repo})
	}

	state := &PipelineState{GCSURI: gcsURI}
	if err := NewPipeline(steps...).Execute(ctx, state); err != nil {
		// Bookkeeping must land even when ctx was the cause of the failure.
		bctx := context.WithoutCancel(ctx)
		if state.ParsingRunID != "" {
			in.repo.MarkParsingRunFailed(bctx, state.ParsingRunID, err)
		}
		if state.DocumentID != "" {
			if markErr := in.repo.MarkDocumentProcessed(bctx, state.DocumentID, infra.DocumentStatusFailed, ""); markErr != nil {
				log.Error().Err(markErr).Str("document_id", state.DocumentID).Msg("Failed to mark document failed")
			}
		}
		log.Error().Err(err).Msg("Ingestion failed")
		return nil, err
	}

	log.Info().
		Str("output_uri", state.OutputURI).
		Int("records", len(state.Records)).
		Int("inserted", state.Inserted).
		Msg("Ingestion finished")

	return &IngestResult{
		FileResult:   state.Result,
		GCSURI:       gcsURI,
		OutputURI:    state.OutputURI,
		DocumentID:   state.DocumentID,
		ParsingRunID: state.ParsingRunID,
		Inserted:     state.Inserted,
	}, nil
}
