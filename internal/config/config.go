// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-normalizer/internal/catalog"
	"github.com/dvloznov/statement-normalizer/internal/identify"
	"github.com/dvloznov/statement-normalizer/internal/normalize"
)

// Config holds the settings shared by every command.
type Config struct {
	CatalogPath      string
	MaxScanRows      int
	MaxDataRows      int
	BatchParallelism int
	LogLevel         zerolog.Level

	GCSBucket string
	BQProject string
	BQDataset string

	HTTPPort string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := &Config{
		CatalogPath: getEnv("CATALOG_PATH", ""),
		GCSBucket:   getEnv("GCS_BUCKET", ""),
		BQProject:   getEnv("BQ_PROJECT", ""),
		BQDataset:   getEnv("BQ_DATASET", "finance"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
	}

	var err error
	if cfg.MaxScanRows, err = getInt("MAX_SCAN_ROWS", identify.DefaultMaxScanRows); err != nil {
		return nil, err
	}
	if cfg.MaxDataRows, err = getInt("MAX_DATA_ROWS", normalize.DefaultMaxDataRows); err != nil {
		return nil, err
	}
	if cfg.BatchParallelism, err = getInt("BATCH_PARALLELISM", 4); err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("Load: LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// Catalog loads the catalog file named by CatalogPath, or the built-in one.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if c.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(c.CatalogPath)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("Load: %s must be a positive integer, got %q", key, value)
	}
	return n, nil
}
