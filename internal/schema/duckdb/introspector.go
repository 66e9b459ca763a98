package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/queryforge/queryforge/internal/schema"
)

// Introspector reads table and view metadata from a DuckDB session. Views
// registered over parquet files carry no constraints, so primary keys are
// best-effort and foreign keys are never reported.
type Introspector struct {
	db *sql.DB
}

func New(db *sql.DB) *Introspector {
	return &Introspector{db: db}
}

func (i *Introspector) Introspect(ctx context.Context) (schema.DbSchema, error) {
	names, err := i.listRelations(ctx)
	if err != nil {
		return schema.DbSchema{}, err
	}

	out := schema.DbSchema{Dialect: "duckdb"}
	for _, name := range names {
		columns, err := i.listColumns(ctx, name)
		if err != nil {
			return schema.DbSchema{}, err
		}
		out.Tables = append(out.Tables, schema.Table{Name: name, Columns: columns})
	}

	pks, err := i.listPrimaryKeys(ctx)
	if err != nil {
		return schema.DbSchema{}, err
	}
	for idx := range out.Tables {
		out.Tables[idx].PrimaryKey = pks[out.Tables[idx].Name]
	}

	if err := out.Validate(); err != nil {
		return schema.DbSchema{}, err
	}
	return out, nil
}

func (i *Introspector) listRelations(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'main' AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan relation name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relations: %w", err)
	}
	return names, nil
}

func (i *Introspector) listColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'main' AND table_name = ?
ORDER BY ordinal_position`, tableName)
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

func (i *Introspector) listPrimaryKeys(ctx context.Context) (map[string][]string, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT table_name, unnest(constraint_column_names)
FROM duckdb_constraints()
WHERE constraint_type = 'PRIMARY KEY'`)
	if err != nil {
		return nil, fmt.Errorf("list primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pks := map[string][]string{}
	for rows.Next() {
		var tableName, column string
		if err := rows.Scan(&tableName, &column); err != nil {
			return nil, fmt.Errorf("scan primary key: %w", err)
		}
		pks[tableName] = append(pks[tableName], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary keys: %w", err)
	}
	return pks, nil
}
