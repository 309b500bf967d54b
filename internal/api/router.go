// Package api assembles the HTTP routes and middleware of the API server.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-normalizer/internal/api/handlers"
	"github.com/dvloznov/statement-normalizer/internal/api/middleware"
	infra "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/jobs"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

// Deps are the collaborators the routes need. Publisher and Store may be nil
// to disable the jobs endpoints; Repo may be nil to disable the stored data
// endpoints.
type Deps struct {
	Service   *pipeline.Service
	Publisher jobs.Publisher
	Store     jobs.JobStore
	Repo      infra.DocumentRepository
}

// NewRouter returns the API handler wrapped in the standard middleware.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	convertHandler := handlers.NewConvertHandler(deps.Service, log)
	sourcesHandler := handlers.NewSourcesHandler(deps.Service.Catalog())

	mux.HandleFunc("/api/convert", only(http.MethodPost, convertHandler.Convert))
	mux.HandleFunc("/api/sources", only(http.MethodGet, sourcesHandler.ListSources))

	if deps.Publisher != nil && deps.Store != nil {
		jobsHandler := handlers.NewJobsHandler(deps.Publisher, deps.Store, log)

		mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				jobsHandler.ListJobs(w, r)
			case http.MethodPost:
				jobsHandler.EnqueueConversion(w, r)
			default:
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})

		mux.HandleFunc("/api/jobs/", only(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		}))
	}

	if deps.Repo != nil {
		transactionsHandler := handlers.NewTransactionsHandler(deps.Repo, log)
		mux.HandleFunc("/api/transactions", only(http.MethodGet, transactionsHandler.ListTransactions))
		mux.HandleFunc("/api/documents", only(http.MethodGet, transactionsHandler.ListDocuments))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
