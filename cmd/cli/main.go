package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-normalizer/internal/config"
	"github.com/dvloznov/statement-normalizer/internal/export"
	"github.com/dvloznov/statement-normalizer/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-normalizer/internal/infra/bigquery"
	"github.com/dvloznov/statement-normalizer/internal/logger"
	"github.com/dvloznov/statement-normalizer/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "convert":
		runConvert(cfg, log)
	case "identify":
		runIdentify(cfg, log)
	case "ingest":
		runIngest(cfg, log)
	case "upload":
		runUpload(log)
	case "sources":
		runSources(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Normalizer CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  convert   Convert local spreadsheets into one output workbook")
	fmt.Println("  identify  Report which source layout each file follows")
	fmt.Println("  ingest    Convert a spreadsheet stored in GCS")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  sources   List the source definitions of the catalog, or show one by name")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func newService(cfg *config.Config, log zerolog.Logger) *pipeline.Service {
	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}
	return pipeline.NewService(cat, pipeline.Options{
		MaxScanRows: cfg.MaxScanRows,
		MaxDataRows: cfg.MaxDataRows,
		Parallelism: cfg.BatchParallelism,
	})
}

func readInputs(log zerolog.Logger, paths []string) []pipeline.Input {
	inputs := make([]pipeline.Input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to read file")
		}
		inputs = append(inputs, pipeline.Input{Filename: filepath.Base(path), Data: data})
	}
	return inputs
}

func runConvert(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	output := fs.String("o", "", "Output path (defaults to stdout)")
	format := fs.String("format", "xlsx", "Output format: xlsx or json")
	fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		log.Fatal().Msg("Usage: cli convert [-o FILE] [-format xlsx|json] FILE...")
	}
	if *format != "xlsx" && *format != "json" {
		log.Fatal().Str("format", *format).Msg("Unsupported output format")
	}

	ctx := logger.WithContext(context.Background(), log)
	batch := newService(cfg, log).ProcessBatch(ctx, readInputs(log, fs.Args()))

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	var err error
	if *format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(batch)
	} else {
		err = export.WriteWorkbook(out, batch.Records(), batch.Failures())
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}

	log.Info().
		Int("files", batch.Summary.Files).
		Int("succeeded", batch.Summary.Succeeded).
		Int("failed", batch.Summary.Failed).
		Int("records", batch.Summary.Records).
		Msg("Conversion finished")
}

func runIdentify(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		log.Fatal().Msg("Usage: cli identify FILE...")
	}

	ctx := logger.WithContext(context.Background(), log)
	service := newService(cfg, log)

	for _, in := range readInputs(log, fs.Args()) {
		res, err := service.Identify(ctx, in.Filename, in.Data)
		switch {
		case err != nil:
			fmt.Printf("%s\terror\t%v\n", in.Filename, err)
		case !res.Matched():
			fmt.Printf("%s\tunknown\t%s\n", in.Filename, res.Probe)
		default:
			fmt.Printf("%s\t%s\tsheet=%q header_row=%d\n", in.Filename, res.Definition.Name, res.SheetName, res.HeaderIndex)
		}
	}
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the spreadsheet")
	bucket := fs.String("bucket", cfg.GCSBucket, "GCS bucket for the converted workbook")
	useBigQuery := fs.Bool("bigquery", cfg.BQProject != "", "Record the document in BigQuery")
	fs.Parse(os.Args[2:])

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	var repo pipeline.DocumentRepository
	if *useBigQuery {
		docRepo, err := infraBQ.NewBigQueryDocumentRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create repository")
		}
		defer docRepo.Close()
		repo = docRepo
	}

	log.Info().Str("gcs_uri", *gcsURI).Msg("Starting ingestion")

	res, err := pipeline.NewIngestor(newService(cfg, log), storage, repo, *bucket).Ingest(ctx, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	if res.Failure != nil {
		fmt.Printf("No known source layout. First rows: %s\n", res.Failure.Probe)
	} else {
		fmt.Printf("Converted %d records from %s (%s).\n", len(res.Records), res.GCSURI, res.Source)
	}
	fmt.Printf("Output: %s\n", res.OutputURI)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local spreadsheet")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcsuploader.BuildGCSURI(*bucketName, *objectName))
}

func runSources(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

	if name := fs.Arg(0); name != "" {
		src := cat.Source(name)
		if src == nil {
			log.Fatal().Str("name", name).Msg("Unknown source")
		}
		fmt.Printf("%s (%s)\nsignatures: %v\n", src.Name, src.Type, src.Signatures)
		for _, field := range slices.Sorted(maps.Keys(src.Mapping)) {
			fmt.Printf("  %-16s %v\n", field, []string(src.Mapping[field]))
		}
		return
	}

	for _, src := range cat.Sources {
		fmt.Printf("%-20s %-16s %v\n", src.Name, src.Type, src.Signatures)
	}
	fmt.Printf("\n%d sources, %d classification rules\n", len(cat.Sources), len(cat.Rules))
}
