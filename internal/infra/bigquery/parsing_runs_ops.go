package bigquery

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/statement-normalizer/internal/logger"
)

const (
	parsingRunsTable = "parsing_runs"
	maxErrorMessage  = 2000
)

// StartParsingRunWithClient inserts a new row into <dataset>.parsing_runs with
// status=RUNNING and returns the generated parsing_run_id.
func StartParsingRunWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID string) (string, error) {
	parsingRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			parsing_run_id,
			document_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@document_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, dataset, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "parser_type", Value: parserType},
		{Name: "parser_version", Value: parserVersion},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runDML(ctx, q, "StartParsingRun"); err != nil {
		return "", err
	}
	return parsingRunID, nil
}

// MarkParsingRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged, not returned.
func MarkParsingRunFailedWithClient(ctx context.Context, client *bigquery.Client, dataset, parsingRunID string, parseErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if parseErr != nil {
		errMsg = truncateUTF8(parseErr.Error(), maxErrorMessage)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, dataset, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := runDML(ctx, q, "MarkParsingRunFailed"); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Msg("Failed to mark parsing run as failed")
	}
}

// MarkParsingRunSucceededWithClient sets status=SUCCESS, finished_ts and the
// number of records written, and clears error_message.
func MarkParsingRunSucceededWithClient(ctx context.Context, client *bigquery.Client, dataset, parsingRunID string, recordCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    record_count = @record_count,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, dataset, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "record_count", Value: int64(recordCount)},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	return runDML(ctx, q, "MarkParsingRunSucceeded")
}

// MarkParsingRunsAsSupersededWithClient marks every finished run of a
// document as SUPERSEDED so its old transactions drop out of queries.
func MarkParsingRunsAsSupersededWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @superseded
		WHERE document_id = @document_id
		  AND status != @running
	`, dataset, parsingRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "superseded", Value: RunStatusSuperseded},
		{Name: "document_id", Value: documentID},
		{Name: "running", Value: RunStatusRunning},
	}

	return runDML(ctx, q, "MarkParsingRunsAsSuperseded")
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
