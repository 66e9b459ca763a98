package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/queryforge/queryforge/internal/history"
	"github.com/queryforge/queryforge/internal/pipeline"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Store persists question runs and their attempt trails.
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open connection, used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// RecordRun implements pipeline.RunSink. The run row and its attempts are
// written in one transaction.
func (s *Store) RecordRun(ctx context.Context, run pipeline.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var runID int64
	query := `
INSERT INTO question_run (question, status, final_sql, duration_ms)
VALUES ($1, $2, $3, $4)
RETURNING run_id`
	if err := tx.QueryRowContext(ctx, query,
		run.Question, run.Status, run.FinalSQL, run.Duration.Milliseconds(),
	).Scan(&runID); err != nil {
		return fmt.Errorf("insert question run: %w", err)
	}

	for _, attempt := range run.Attempts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO run_attempt (run_id, attempt, candidate_sql, valid, validation_error)
VALUES ($1, $2, $3, $4, $5)`,
			runID, attempt.Attempt, attempt.SQL, attempt.Result.Valid, attempt.Result.Error,
		); err != nil {
			return fmt.Errorf("insert run attempt %d: %w", attempt.Attempt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, question, status, final_sql, duration_ms, created_at
FROM question_run
ORDER BY run_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]history.Run, 0)
	for rows.Next() {
		var run history.Run
		if err := rows.Scan(&run.RunID, &run.Question, &run.Status, &run.FinalSQL, &run.DurationMs, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, runID int64) (history.Run, error) {
	var run history.Run
	if err := s.db.QueryRowContext(ctx, `
SELECT run_id, question, status, final_sql, duration_ms, created_at
FROM question_run
WHERE run_id = $1`, runID).Scan(
		&run.RunID, &run.Question, &run.Status, &run.FinalSQL, &run.DurationMs, &run.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Run{}, history.ErrNotFound
		}
		return history.Run{}, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT attempt, candidate_sql, valid, validation_error
FROM run_attempt
WHERE run_id = $1
ORDER BY attempt ASC`, runID)
	if err != nil {
		return history.Run{}, fmt.Errorf("list run attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var attempt history.Attempt
		if err := rows.Scan(&attempt.Attempt, &attempt.SQL, &attempt.Valid, &attempt.Error); err != nil {
			return history.Run{}, fmt.Errorf("scan attempt row: %w", err)
		}
		run.Attempts = append(run.Attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return history.Run{}, fmt.Errorf("iterate attempt rows: %w", err)
	}
	return run, nil
}
