package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/api"
	"github.com/dvloznov/statement-normalizer/internal/config"
	"github.com/dvloznov/statement-normalizer/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/jobs/inmemory"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Parse command-line flags
	var (
		port        = flag.String("port", cfg.HTTPPort, "HTTP server port")
		bucket      = flag.String("bucket", cfg.GCSBucket, "GCS bucket for converted workbooks (or set GCS_BUCKET env)")
		withQueue   = flag.Bool("jobs", cfg.GCSBucket != "", "Enable GCS conversion jobs (needs storage credentials)")
		useBigQuery = flag.Bool("bigquery", cfg.BQProject != "", "Record ingested files in BigQuery")
	)
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

	service := pipeline.NewService(cat, pipeline.Options{
		MaxScanRows: cfg.MaxScanRows,
		MaxDataRows: cfg.MaxDataRows,
		Parallelism: cfg.BatchParallelism,
	})

	deps := api.Deps{Service: service}

	if *useBigQuery {
		docRepo, err := infraBQ.NewBigQueryDocumentRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create document repository")
		}
		defer docRepo.Close()
		deps.Repo = docRepo
	}

	var jobQueue *inmemory.Queue
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if *withQueue {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()

		if *bucket == "" {
			log.Warn().Msg("No GCS bucket configured - converted workbooks are written next to their input")
		}

		ingestor := pipeline.NewIngestor(service, storage, deps.Repo, *bucket)

		jobStore := inmemory.NewStore()
		jobQueue = inmemory.NewQueue(100, inmemory.DefaultWorkers, jobStore)
		deps.Publisher = jobQueue
		deps.Store = jobStore

		go func() {
			log.Info().Msg("Starting job worker")
			if err := jobQueue.Start(workerCtx, pipeline.NewConvertHandler(ingestor)); err != nil {
				log.Error().Err(err).Msg("Job worker stopped with error")
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      api.NewRouter(deps, log),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Int("sources", len(cat.Sources)).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if jobQueue != nil {
		// Stop job queue and wait for in-flight jobs
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		if err := jobQueue.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close job queue")
		}
	}

	log.Info().Msg("Server exited")
}
