package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/queryforge/queryforge/internal/config"
	"github.com/queryforge/queryforge/internal/demo/seeder"
	"github.com/queryforge/queryforge/internal/observability"
	s3store "github.com/queryforge/queryforge/internal/storage/s3"
)

func main() {
	regions := flag.Int("regions", 4, "number of demo regions")
	sales := flag.Int("sales", 1000, "number of demo sales rows")
	rowsPerFile := flag.Int("rows-per-file", 500, "parquet rows per file")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	cfg, err := config.LoadFromEnv("queryforge-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	s := seeder.New(objectStore, logger)
	if err := s.Seed(ctx, seeder.Config{
		Regions:     *regions,
		Sales:       *sales,
		RowsPerFile: *rowsPerFile,
		Seed:        *seed,
	}); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seeding complete", slog.Int("regions", *regions), slog.Int("sales", *sales))
}
