// Package handlers implements the HTTP endpoints of the API server.
package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-normalizer/internal/api/middleware"
	"github.com/dvloznov/statement-normalizer/internal/export"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

// MaxUploadBytes bounds a multipart conversion request.
const MaxUploadBytes = 64 << 20

// ConvertHandler converts uploaded spreadsheets synchronously.
type ConvertHandler struct {
	service *pipeline.Service
	log     zerolog.Logger
}

// NewConvertHandler creates a new convert handler.
func NewConvertHandler(service *pipeline.Service, log zerolog.Logger) *ConvertHandler {
	return &ConvertHandler{
		service: service,
		log:     log,
	}
}

// Convert handles POST /api/convert. Files are read from the "files" form
// field. The response is the output workbook, or the batch result as JSON
// when format=json.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one file is required")
		return
	}

	inputs := make([]pipeline.Input, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to open "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read "+fh.Filename)
			return
		}
		inputs = append(inputs, pipeline.Input{Filename: filepath.Base(fh.Filename), Data: data})
	}

	batch := h.service.ProcessBatch(ctx, inputs)

	if r.URL.Query().Get("format") == "json" {
		middleware.WriteJSON(w, http.StatusOK, batch)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, batch.Records(), batch.Failures()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write workbook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to write workbook")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="converted-%s.xlsx"`, time.Now().Format("20060102-150405")))
	w.Header().Set("X-Files-Succeeded", fmt.Sprint(batch.Summary.Succeeded))
	w.Header().Set("X-Files-Failed", fmt.Sprint(batch.Summary.Failed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
