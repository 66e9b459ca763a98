package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/queryforge/queryforge/internal/schema"
)

type Config struct {
	DSN             string
	SearchSchema    string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Introspector reads table, column, and foreign-key metadata from a
// PostgreSQL database via information_schema.
type Introspector struct {
	db           *sql.DB
	searchSchema string
}

func Open(ctx context.Context, cfg Config) (*Introspector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("schema source dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open schema source db: %w", err)
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
		return nil, fmt.Errorf("ping schema source db: %w", err)
	}

	searchSchema := cfg.SearchSchema
	if searchSchema == "" {
		searchSchema = "public"
	}
	return &Introspector{db: db, searchSchema: searchSchema}, nil
}

// NewWithDB wraps an already-open connection, used by tests.
func NewWithDB(db *sql.DB, searchSchema string) *Introspector {
	if searchSchema == "" {
		searchSchema = "public"
	}
	return &Introspector{db: db, searchSchema: searchSchema}
}

func (i *Introspector) Close() error {
	return i.db.Close()
}

func (i *Introspector) HealthCheck(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

func (i *Introspector) Introspect(ctx context.Context) (schema.DbSchema, error) {
	names, err := i.listTables(ctx)
	if err != nil {
		return schema.DbSchema{}, err
	}

	out := schema.DbSchema{Dialect: "postgres"}
	for _, name := range names {
		table := schema.Table{Name: name}
		if table.Columns, err = i.listColumns(ctx, name); err != nil {
			return schema.DbSchema{}, err
		}
		if table.PrimaryKey, err = i.listPrimaryKey(ctx, name); err != nil {
			return schema.DbSchema{}, err
		}
		if table.ForeignKeys, err = i.listForeignKeys(ctx, name); err != nil {
			return schema.DbSchema{}, err
		}
		out.Tables = append(out.Tables, table)
	}

	if err := out.Validate(); err != nil {
		return schema.DbSchema{}, err
	}
	return out, nil
}

func (i *Introspector) listTables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`, i.searchSchema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

func (i *Introspector) listColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`, i.searchSchema, tableName)
	if err != nil {
		return nil, fmt.Errorf("list columns for %q: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []schema.Column
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column for %q: %w", tableName, err)
		}
		columns = append(columns, schema.Column{
			Name:     name,
			Type:     dataType,
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns for %q: %w", tableName, err)
	}
	return columns, nil
}

func (i *Introspector) listPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`, i.searchSchema, tableName)
	if err != nil {
		return nil, fmt.Errorf("list primary key for %q: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var pk []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, fmt.Errorf("scan primary key for %q: %w", tableName, err)
		}
		pk = append(pk, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary key for %q: %w", tableName, err)
	}
	return pk, nil
}

func (i *Introspector) listForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'FOREIGN KEY'
ORDER BY kcu.ordinal_position`, i.searchSchema, tableName)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys for %q: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var fks []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key for %q: %w", tableName, err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys for %q: %w", tableName, err)
	}
	return fks, nil
}
