package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-normalizer/internal/api/middleware"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/export"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
)

const dateLayout = "2006-01-02"

// TransactionsHandler serves stored transactions and documents.
type TransactionsHandler struct {
	repo infra.DocumentRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo infra.DocumentRepository, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// ListTransactions handles GET /api/transactions. start_date and end_date
// default to the last year; format=xlsx returns the output workbook.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	endDate := h.now()
	startDate := endDate.AddDate(-1, 0, 0)
	var err error

	if s := query.Get("start_date"); s != "" {
		if startDate, err = time.Parse(dateLayout, s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		if endDate, err = time.Parse(dateLayout, s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	}
	if endDate.Before(startDate) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	rows, err := h.repo.QueryTransactionsByDateRange(r.Context(), startDate, endDate)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	records := make([]*domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, infra.RecordFromRow(row))
	}

	if query.Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := export.WriteWorkbook(&buf, records, nil); err != nil {
			h.log.Error().Err(err).Msg("Failed to write workbook")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to write workbook")
			return
		}
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, records)
}

// ListDocuments handles GET /api/documents
func (h *TransactionsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.repo.ListAllDocuments(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}
