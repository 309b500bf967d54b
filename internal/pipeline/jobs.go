package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-normalizer/internal/jobs"
)

// FileIngester is the part of Ingestor the job handler needs.
type FileIngester interface {
	Ingest(ctx context.Context, gcsURI string) (*IngestResult, error)
}

// NewConvertHandler returns a job handler that ingests ConvertFileJobs and
// copies the outcome onto the job.
func NewConvertHandler(ingester FileIngester) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		convert, ok := job.(*jobs.ConvertFileJob)
		if !ok {
			return fmt.Errorf("ConvertHandler: unexpected job type %s", job.GetType())
		}

		res, err := ingester.Ingest(ctx, convert.GCSURI)
		if err != nil {
			return err
		}

		convert.OutputURI = res.OutputURI
		convert.DocumentID = res.DocumentID
		convert.ParsingRunID = res.ParsingRunID
		if res.FileResult != nil {
			convert.Source = res.Source
			convert.RecordCount = len(res.Records)
			if res.Failure != nil {
				convert.Unidentified = res.Failure.Probe
			}
		}
		return nil
	}
}
