package handlers

import (
	"net/http"

	"github.com/dvloznov/statement-normalizer/internal/api/middleware"
	"github.com/dvloznov/statement-normalizer/internal/catalog"
)

// SourcesHandler lists the source definitions of the loaded catalog.
type SourcesHandler struct {
	catalog *catalog.Catalog
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(cat *catalog.Catalog) *SourcesHandler {
	return &SourcesHandler{catalog: cat}
}

// ListSources handles GET /api/sources. With ?name= it returns that one
// definition, or 404.
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		src := h.catalog.Source(name)
		if src == nil {
			middleware.WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, src)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": h.catalog.Sources,
		"rules":   len(h.catalog.Rules),
		"count":   len(h.catalog.Sources),
	})
}
