package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/queryforge/queryforge/internal/storage"
	"github.com/queryforge/queryforge/internal/warehouse"
)

const tablePrefix = "tables"

// Engine is a DuckDB session over parquet files pulled from the object
// store. The session and its views are created once and reused for every
// dry-run and execution until Close.
type Engine struct {
	db      *sql.DB
	store   storage.ObjectStore
	workDir string
}

func Open(ctx context.Context, store storage.ObjectStore) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp("", "queryforge-warehouse-")
	if err != nil {
		return nil, fmt.Errorf("create warehouse temp dir: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	engine := &Engine{db: db, store: store, workDir: workDir}
	if err := engine.Refresh(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}

// NewWithDB wraps an already-open database handle; used by tests.
func NewWithDB(db *sql.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) Close() error {
	if e.workDir != "" {
		_ = os.RemoveAll(e.workDir)
	}
	return e.db.Close()
}

func (e *Engine) DB() *sql.DB {
	return e.db
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Refresh re-lists the object store and rebuilds one view per table
// directory (tables/<table>/*.parquet).
func (e *Engine) Refresh(ctx context.Context) error {
	infos, err := e.store.List(ctx, tablePrefix)
	if err != nil {
		return fmt.Errorf("list table objects: %w", err)
	}

	grouped := map[string][]string{}
	for _, info := range infos {
		tableName, ok := tableNameFromKey(info.Key)
		if !ok || !strings.HasSuffix(info.Key, ".parquet") {
			continue
		}
		localPath, err := e.fetch(ctx, info.Key)
		if err != nil {
			return err
		}
		grouped[tableName] = append(grouped[tableName], localPath)
	}

	tableNames := make([]string, 0, len(grouped))
	for tableName := range grouped {
		tableNames = append(tableNames, tableName)
	}
	sort.Strings(tableNames)

	for _, tableName := range tableNames {
		viewSQL := fmt.Sprintf(
			`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`,
			quoteIdent(tableName), quoteStringArray(grouped[tableName]),
		)
		if _, err := e.db.ExecContext(ctx, viewSQL); err != nil {
			return fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}
	return nil
}

// DryRun prepares the statement without executing it. A prepare rejection is
// an Invalid result; failure to obtain a session is returned as an error.
func (e *Engine) DryRun(ctx context.Context, sqlText string) (warehouse.DryRunResult, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return warehouse.DryRunResult{}, fmt.Errorf("sql is required")
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return warehouse.DryRunResult{}, fmt.Errorf("acquire warehouse session: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stmt, err := conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return warehouse.DryRunResult{Valid: false, Error: err.Error()}, nil
	}
	if err := stmt.Close(); err != nil {
		return warehouse.DryRunResult{}, fmt.Errorf("close prepared statement: %w", err)
	}
	return warehouse.DryRunResult{Valid: true}, nil
}

func (e *Engine) Execute(ctx context.Context, sqlText string, rowLimit int) (warehouse.ResultSet, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return warehouse.ResultSet{}, fmt.Errorf("sql is required")
	}
	if rowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, rowLimit)
	}

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.ResultSet{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.ResultSet{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return warehouse.ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	return warehouse.ResultSet{Columns: columns, Rows: resultRows}, nil
}

func (e *Engine) fetch(ctx context.Context, key string) (string, error) {
	reader, err := e.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	localPath := filepath.Join(e.workDir, sanitizeFileComponent(key))
	if err := writeFile(localPath, reader); err != nil {
		return "", fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	return localPath, nil
}

func tableNameFromKey(key string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) < 3 || parts[0] != tablePrefix {
		return "", false
	}
	if strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "object"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
