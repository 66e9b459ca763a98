package seeder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/queryforge/queryforge/internal/storage"
)

type Config struct {
	Regions     int
	Sales       int
	RowsPerFile int
	Seed        int64
}

func (c Config) withDefaults() Config {
	if c.Regions < 1 {
		c.Regions = 4
	}
	if c.Sales < 1 {
		c.Sales = 1000
	}
	if c.RowsPerFile < 1 {
		c.RowsPerFile = 500
	}
	return c
}

// Seeder writes demo parquet files into the object store so the warehouse
// has tables to dry-run candidate SQL against.
type Seeder struct {
	store  storage.ObjectStore
	logger *slog.Logger
}

func New(store storage.ObjectStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Seeder{store: store, logger: logger}
}

func (s *Seeder) Seed(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	gen := NewGenerator(cfg.Seed)

	regions := gen.Regions(cfg.Regions)
	if err := writeRows(ctx, s.store, "region", regions, cfg.RowsPerFile); err != nil {
		return fmt.Errorf("seed region table: %w", err)
	}
	s.logger.InfoContext(ctx, "seeded table", slog.String("table", "region"), slog.Int("rows", len(regions)))

	sales := gen.Sales(cfg.Sales, len(regions))
	if err := writeRows(ctx, s.store, "sales", sales, cfg.RowsPerFile); err != nil {
		return fmt.Errorf("seed sales table: %w", err)
	}
	s.logger.InfoContext(ctx, "seeded table", slog.String("table", "sales"), slog.Int("rows", len(sales)))

	return nil
}

func writeRows[T any](ctx context.Context, store storage.ObjectStore, table string, rows []T, rowsPerFile int) error {
	for part := 0; len(rows) > 0; part++ {
		chunk := rows
		if len(chunk) > rowsPerFile {
			chunk = chunk[:rowsPerFile]
		}
		rows = rows[len(chunk):]

		data, err := encodeParquet(chunk)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("tables/%s/%s-%05d.parquet", table, table, part)
		if _, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	return nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
