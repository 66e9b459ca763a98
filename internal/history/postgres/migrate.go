package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const migrationTable = "queryforge_schema_migrations"

// Ordered migration scripts; the slice index + 1 is the version.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS question_run (
	run_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	question TEXT NOT NULL,
	status TEXT NOT NULL,
	final_sql TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`
CREATE TABLE IF NOT EXISTS run_attempt (
	run_id BIGINT NOT NULL REFERENCES question_run (run_id) ON DELETE CASCADE,
	attempt INT NOT NULL,
	candidate_sql TEXT NOT NULL DEFAULT '',
	valid BOOLEAN NOT NULL,
	validation_error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, attempt)
)`,
	`
CREATE INDEX IF NOT EXISTS question_run_status_idx ON question_run (status, created_at DESC)`,
}

// Migrate applies any history schema migrations not yet recorded in the
// version table. It returns the number of scripts applied.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return 0, fmt.Errorf("ensure migration table: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable)
	if err != nil {
		return 0, fmt.Errorf("query applied versions: %w", err)
	}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("iterate versions: %w", err)
	}
	_ = rows.Close()

	runCount := 0
	for i, script := range migrations {
		version := int64(i + 1)
		if applied[version] {
			continue
		}
		if err := applyMigration(ctx, db, version, script); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int64, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("apply migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationTable+` (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("mark migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}
