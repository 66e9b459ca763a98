package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/queryforge/queryforge/internal/auth"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

// handleQuery runs a caller-supplied statement against the warehouse. Unlike
// the question pipeline it dry-runs first and only executes accepted SQL.
func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Warehouse == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "WAREHOUSE_NOT_CONFIGURED", "warehouse is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAsk); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	rowLimit := req.RowLimit
	if rowLimit <= 0 || (deps.ExecuteRowLimit > 0 && rowLimit > deps.ExecuteRowLimit) {
		rowLimit = deps.ExecuteRowLimit
	}

	check, err := deps.Warehouse.DryRun(r.Context(), req.SQL)
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	if !check.Valid {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "INVALID_SQL", check.Error, false, nil)
		return
	}

	result, err := deps.Warehouse.Execute(r.Context(), req.SQL, rowLimit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_FAILED", err.Error(), true, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns":   result.Columns,
		"rows":      result.Rows,
		"row_count": len(result.Rows),
	})
}
