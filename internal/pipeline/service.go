package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/statement-normalizer/internal/catalog"
	"github.com/dvloznov/statement-normalizer/internal/classify"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/export"
	"github.com/dvloznov/statement-normalizer/internal/identify"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/normalize"
	"github.com/dvloznov/statement-normalizer/internal/reader"
)

// DefaultParallelism is the number of files a batch converts at once.
const DefaultParallelism = 4

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxScanRows int
	MaxDataRows int
	Parallelism int
	Now         func() time.Time
	Reader      WorkbookReader
}

// Service converts spreadsheet files into classified records. It holds no
// per-file state and is safe for concurrent use.
type Service struct {
	catalog     *catalog.Catalog
	parallelism int
	core        *Pipeline
	identify    *Pipeline
}

// NewService builds the conversion pipeline from a catalog.
func NewService(cat *catalog.Catalog, opts Options) *Service {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Reader == nil {
		opts.Reader = reader.New()
	}

	identifier := identify.NewIdentifier(cat.Sources, opts.MaxScanRows)
	normalizer := normalize.New(normalize.Options{
		MaxDataRows:  opts.MaxDataRows,
		TotalsMarker: cat.TotalsMarker,
		Payroll:      cat.Payroll,
		Now:          opts.Now,
	})
	classifier := classify.New(cat.Rules, cat.Channels)

	read := &ReadWorkbookStep{Reader: opts.Reader}
	ident := &IdentifyStep{Identifier: identifier}
	return &Service{
		catalog:     cat,
		parallelism: opts.Parallelism,
		core: NewPipeline(
			read,
			ident,
			&NormalizeStep{Normalizer: normalizer},
			&ClassifyStep{Classifier: classifier},
		),
		identify: NewPipeline(read, ident),
	}
}

// Identify reads a file and reports which source layout it follows without
// normalizing it. An unmatched file yields a result with only Probe set.
func (s *Service) Identify(ctx context.Context, filename string, data []byte) (*domain.IdentificationResult, error) {
	state := &PipelineState{Filename: filename, Data: data}
	err := s.identify.Execute(context.WithoutCancel(ctx), state)

	var idErr *domain.IdentificationError
	switch {
	case errors.As(err, &idErr):
		return &domain.IdentificationResult{HeaderIndex: -1, Probe: idErr.Probe}, nil
	case err != nil:
		return nil, fmt.Errorf("Identify: %s: %w", filename, err)
	}
	return state.Identification, nil
}

// Catalog returns the catalog the service was built from.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Input is one file of a batch.
type Input struct {
	Filename string
	Data     []byte
}

// FileResult is the outcome of converting one file. Failure is set when the
// file could not be converted; Records is then empty.
type FileResult struct {
	Filename    string                      `json:"filename"`
	Definition  *domain.SourceDefinition    `json:"-"`
	Source      string                      `json:"source,omitempty"`
	SourceType  domain.SourceType           `json:"source_type,omitempty"`
	SheetName   string                      `json:"sheet,omitempty"`
	HeaderIndex int                         `json:"header_index"`
	Records     []*domain.TransactionRecord `json:"records"`
	Diagnostics []string                    `json:"diagnostics,omitempty"`
	Failure     *export.Failure             `json:"failure,omitempty"`
}

// ProcessFile converts one file. A file no signature matches yields a result
// with Failure set and a nil error; read and parse errors are returned.
func (s *Service) ProcessFile(ctx context.Context, filename string, data []byte) (*FileResult, error) {
	ctx, log := logger.Scoped(ctx, "filename", filename)

	// Once started, a file runs to completion; cancellation is only honored
	// before a file of a batch starts.
	state := &PipelineState{Filename: filename, Data: data}
	err := s.core.Execute(context.WithoutCancel(ctx), state)

	result := &FileResult{Filename: filename, HeaderIndex: -1}
	if res := state.Identification; res.Matched() {
		result.Definition = res.Definition
		result.Source = res.Definition.Name
		result.SourceType = res.Definition.Type
		result.SheetName = res.SheetName
		result.HeaderIndex = res.HeaderIndex
	}

	var idErr *domain.IdentificationError
	switch {
	case errors.As(err, &idErr):
		result.Failure = &export.Failure{Filename: filename, Reason: "no known source layout", Probe: idErr.Probe}
		result.Records = []*domain.TransactionRecord{}
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("ProcessFile: %s: %w", filename, err)
	}

	result.Records = state.Records
	result.Diagnostics = state.Diagnostics
	log.Info().
		Str("source", result.Source).
		Int("records", len(result.Records)).
		Int("diagnostics", len(result.Diagnostics)).
		Msg("Converted file")
	return result, nil
}

// Summary counts the outcome of a batch.
type Summary struct {
	Files     int `json:"files"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Records   int `json:"records"`
}

// BatchResult holds one FileResult per input, in input order.
type BatchResult struct {
	Files   []*FileResult `json:"files"`
	Summary Summary       `json:"summary"`
}

// Records returns every record of the batch in input order.
func (b *BatchResult) Records() []*domain.TransactionRecord {
	var out []*domain.TransactionRecord
	for _, f := range b.Files {
		out = append(out, f.Records...)
	}
	return out
}

// Failures returns the failed files in input order.
func (b *BatchResult) Failures() []export.Failure {
	var out []export.Failure
	for _, f := range b.Files {
		if f.Failure != nil {
			out = append(out, *f.Failure)
		}
	}
	return out
}

// ProcessBatch converts files concurrently. A failing file is recorded on its
// result and never affects the others.
func (s *Service) ProcessBatch(ctx context.Context, inputs []Input) *BatchResult {
	results := make([]*FileResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = s.processIsolated(gctx, in)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Files: results}
	for _, r := range results {
		batch.Summary.Files++
		if r.Failure != nil {
			batch.Summary.Failed++
			continue
		}
		batch.Summary.Succeeded++
		batch.Summary.Records += len(r.Records)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("files", batch.Summary.Files).
		Int("succeeded", batch.Summary.Succeeded).
		Int("failed", batch.Summary.Failed).
		Int("records", batch.Summary.Records).
		Msg("Batch finished")
	return batch
}

func (s *Service) processIsolated(ctx context.Context, in Input) *FileResult {
	if err := ctx.Err(); err != nil {
		return failed(in.Filename, err)
	}
	res, err := s.ProcessFile(ctx, in.Filename, in.Data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("filename", in.Filename).
			Msg("File conversion failed")
		return failed(in.Filename, err)
	}
	return res
}

func failed(filename string, err error) *FileResult {
	return &FileResult{
		Filename:    filename,
		HeaderIndex: -1,
		Records:     []*domain.TransactionRecord{},
		Failure:     &export.Failure{Filename: filename, Reason: err.Error()},
	}
}
