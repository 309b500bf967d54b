package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/config"
	"github.com/dvloznov/statement-normalizer/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.LogLevel)

	// Parse CLI flags
	gcsURI := flag.String("gcs-uri", "", "GCS URI of the spreadsheet (e.g. gs://bucket/2025/card.xls)")
	bucket := flag.String("bucket", cfg.GCSBucket, "GCS bucket for the converted workbook (defaults to the input bucket)")
	useBigQuery := flag.Bool("bigquery", cfg.BQProject != "", "Record the document and its transactions in BigQuery")
	flag.Parse()

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

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

	service := pipeline.NewService(cat, pipeline.Options{
		MaxScanRows: cfg.MaxScanRows,
		MaxDataRows: cfg.MaxDataRows,
	})

	log.Info().Str("gcs_uri", *gcsURI).Msg("Starting ingestion")

	res, err := pipeline.NewIngestor(service, storage, repo, *bucket).Ingest(ctx, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal().Err(err).Msg("Failed to print result")
	}
}
