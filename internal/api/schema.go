package api

import (
	"net/http"

	"github.com/queryforge/queryforge/internal/auth"
	"github.com/queryforge/queryforge/internal/schema"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Introspector == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleSchemaReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	dbSchema, err := deps.Introspector.Introspect(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to introspect schema", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dialect": dbSchema.Dialect,
		"tables":  tablePayload(dbSchema.Tables),
	})
}

func tablePayload(tables []schema.Table) []map[string]any {
	payload := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		columns := make([]map[string]any, 0, len(table.Columns))
		for _, col := range table.Columns {
			columns = append(columns, map[string]any{
				"name":     col.Name,
				"type":     col.Type,
				"nullable": col.Nullable,
			})
		}
		foreignKeys := make([]map[string]any, 0, len(table.ForeignKeys))
		for _, fk := range table.ForeignKeys {
			foreignKeys = append(foreignKeys, map[string]any{
				"column":     fk.Column,
				"ref_table":  fk.RefTable,
				"ref_column": fk.RefColumn,
			})
		}
		entry := map[string]any{
			"name":    table.Name,
			"columns": columns,
		}
		if table.Description != "" {
			entry["description"] = table.Description
		}
		if len(table.PrimaryKey) > 0 {
			entry["primary_key"] = table.PrimaryKey
		}
		if len(foreignKeys) > 0 {
			entry["foreign_keys"] = foreignKeys
		}
		payload = append(payload, entry)
	}
	return payload
}
