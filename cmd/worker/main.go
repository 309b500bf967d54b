package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/config"
	"github.com/dvloznov/statement-normalizer/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/jobs"
	"github.com/dvloznov/statement-normalizer/internal/jobs/inmemory"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

// The worker converts every GCS URI given as an argument, or one per line on
// stdin, through the job queue and exits once all jobs have settled.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		workers     = flag.Int("workers", inmemory.DefaultWorkers, "Number of concurrent conversions")
		bucket      = flag.String("bucket", cfg.GCSBucket, "GCS bucket for converted workbooks")
		useBigQuery = flag.Bool("bigquery", cfg.BQProject != "", "Record ingested files in BigQuery")
	)
	flag.Parse()

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	uris := flag.Args()
	if len(uris) == 0 {
		uris, err = readLines(os.Stdin)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read GCS URIs from stdin")
		}
	}
	if len(uris) == 0 {
		log.Fatal().Msg("Usage: worker [flags] gs://bucket/object ...")
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}
	service := pipeline.NewService(cat, pipeline.Options{
		MaxScanRows: cfg.MaxScanRows,
		MaxDataRows: cfg.MaxDataRows,
		Parallelism: cfg.BatchParallelism,
	})

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	var repo pipeline.DocumentRepository
	if *useBigQuery {
		docRepo, err := infraBQ.NewBigQueryDocumentRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create document repository")
		}
		defer docRepo.Close()
		repo = docRepo
	}

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(uris), *workers, jobStore)

	if err := jobQueue.Start(ctx, pipeline.NewConvertHandler(pipeline.NewIngestor(service, storage, repo, *bucket))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	log.Info().Int("jobs", len(uris)).Int("workers", *workers).Msg("Worker service started")

	published := 0
	for _, uri := range uris {
		if _, _, err := gcsuploader.ParseGCSURI(uri); err != nil {
			log.Error().Err(err).Str("gcs_uri", uri).Msg("Skipping invalid GCS URI")
			continue
		}
		if err := jobQueue.PublishConvertFile(ctx, &jobs.ConvertFileJob{GCSURI: uri}); err != nil {
			log.Fatal().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue job")
		}
		published++
	}

	waitForJobs(ctx, jobStore, published)

	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := report(ctx, jobStore)
	log.Info().Msg("Worker service exited")
	if failed > 0 {
		os.Exit(1)
	}
}

// waitForJobs polls the store until every job is completed or failed, or
// ctx is canceled.
func waitForJobs(ctx context.Context, store *inmemory.Store, total int) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		counts := store.CountByStatus(ctx)
		if counts[jobs.JobStatusCompleted]+counts[jobs.JobStatusFailed] >= total {
			return
		}
	}
}

// report prints one line per job and returns the number of failed jobs.
func report(ctx context.Context, store jobs.JobStore) int {
	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		return 0
	}
	failed := 0
	for _, job := range all {
		switch {
		case job.Status == jobs.JobStatusFailed:
			failed++
			fmt.Printf("FAILED  %s: %s\n", job.GCSURI, job.Error)
		case job.Unidentified != "":
			fmt.Printf("UNKNOWN %s -> %s (first rows: %s)\n", job.GCSURI, job.OutputURI, job.Unidentified)
		default:
			fmt.Printf("OK      %s -> %s (%s, %d records)\n", job.GCSURI, job.OutputURI, job.Source, job.RecordCount)
		}
	}
	return failed
}

func readLines(f *os.File) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
