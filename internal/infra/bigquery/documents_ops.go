package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	documentsTable  = "documents"
	documentColumns = `
			document_id,
			gcs_uri,
			document_type,
			source_system,
			upload_ts,
			processed_ts,
			parsing_status,
			original_filename,
			file_mime_type,
			output_gcs_uri,
			checksum_sha256,
			metadata`
)

// InsertDocumentWithClient inserts a single DocumentRow into <dataset>.documents.
func InsertDocumentWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *DocumentRow) error {
	inserter := client.Dataset(dataset).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}
	return nil
}

// MarkDocumentProcessedWithClient records the outcome of a conversion.
func MarkDocumentProcessedWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID, status, outputURI string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET parsing_status = @status,
		    processed_ts = @processed_ts,
		    output_gcs_uri = @output_gcs_uri
		WHERE document_id = @document_id
	`, dataset, documentsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "processed_ts", Value: time.Now()},
		{Name: "output_gcs_uri", Value: outputURI},
		{Name: "document_id", Value: documentID},
	}

	return runDML(ctx, q, "MarkDocumentProcessed")
}

// ListAllDocumentsWithClient retrieves all documents, newest first.
func ListAllDocumentsWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]*DocumentRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM `+"`%s.%s.%s`"+`
		ORDER BY upload_ts DESC
	`, documentColumns, client.Project(), dataset, documentsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAllDocumentsWithClient: reading query: %w", err)
	}

	var documents []*DocumentRow
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAllDocumentsWithClient: iterating: %w", err)
		}
		documents = append(documents, &row)
	}

	return documents, nil
}

// FindDocumentByChecksumWithClient retrieves a document by checksum.
// Returns nil if no document with the given checksum exists.
func FindDocumentByChecksumWithClient(ctx context.Context, client *bigquery.Client, dataset, checksum string) (*DocumentRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM `+"`%s.%s.%s`"+`
		WHERE checksum_sha256 = @checksum
		LIMIT 1
	`, documentColumns, client.Project(), dataset, documentsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksumWithClient: reading query: %w", err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksumWithClient: reading row: %w", err)
	}

	return &row, nil
}

// runDML runs a DML statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}
