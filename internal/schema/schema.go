package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptySchema = errors.New("schema: no tables")

// DbSchema describes the tables available to query synthesis. It is built
// once per session by an Introspector and read-only afterwards.
type DbSchema struct {
	Dialect string
	Tables  []Table
}

type Table struct {
	Name        string
	Description string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// ForeignKey links a column of the owning table to a column of another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

type Introspector interface {
	Introspect(ctx context.Context) (DbSchema, error)
}

func (s DbSchema) HasTable(name string) bool {
	for _, table := range s.Tables {
		if strings.EqualFold(table.Name, name) {
			return true
		}
	}
	return false
}

func (s DbSchema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (s DbSchema) Validate() error {
	if len(s.Tables) == 0 {
		return ErrEmptySchema
	}
	for _, table := range s.Tables {
		if strings.TrimSpace(table.Name) == "" {
			return fmt.Errorf("schema: table with empty name")
		}
		if len(table.Columns) == 0 {
			return fmt.Errorf("schema: table %q has no columns", table.Name)
		}
		for _, fk := range table.ForeignKeys {
			if !s.HasTable(fk.RefTable) {
				return fmt.Errorf("schema: table %q references unknown table %q", table.Name, fk.RefTable)
			}
		}
	}
	return nil
}

// RenderPrompt renders the schema as compact markdown for model prompts.
func RenderPrompt(s DbSchema) string {
	var b strings.Builder
	if s.Dialect != "" {
		fmt.Fprintf(&b, "Dialect: %s\n\n", s.Dialect)
	}
	for _, table := range s.Tables {
		fmt.Fprintf(&b, "## %s\n", table.Name)
		if table.Description != "" {
			fmt.Fprintf(&b, "%s\n", table.Description)
		}
		for _, col := range table.Columns {
			nullable := "NOT NULL"
			if col.Nullable {
				nullable = "NULL"
			}
			fmt.Fprintf(&b, "- %s: %s %s\n", col.Name, col.Type, nullable)
		}
		if len(table.PrimaryKey) > 0 {
			fmt.Fprintf(&b, "Primary key: %s\n", strings.Join(table.PrimaryKey, ", "))
		}
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(&b, "FK: %s.%s -> %s.%s\n", table.Name, fk.Column, fk.RefTable, fk.RefColumn)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
