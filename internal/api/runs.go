package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/queryforge/queryforge/internal/auth"
	"github.com/queryforge/queryforge/internal/history"
)

func handleListRuns(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Runs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "run history is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleRunsReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	runs, err := deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FETCH_FAILED", "failed to list runs", true, map[string]any{"details": err.Error()})
		return
	}

	payload := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		payload = append(payload, runPayload(run, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": payload})
}

func handleGetRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Runs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "run history is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleRunsReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	runID, err := strconv.ParseInt(r.PathValue("run"), 10, 64)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_RUN_ID", "run id must be an integer", false, nil)
		return
	}

	run, err := deps.Runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "RUN_NOT_FOUND", "run does not exist", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FETCH_FAILED", "failed to load run", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, runPayload(run, true))
}

func runPayload(run history.Run, includeAttempts bool) map[string]any {
	payload := map[string]any{
		"run_id":      run.RunID,
		"question":    run.Question,
		"status":      run.Status,
		"final_sql":   run.FinalSQL,
		"duration_ms": run.DurationMs,
		"created_at":  run.CreatedAt,
	}
	if !includeAttempts {
		return payload
	}
	attempts := make([]map[string]any, 0, len(run.Attempts))
	for _, attempt := range run.Attempts {
		attempts = append(attempts, map[string]any{
			"attempt": attempt.Attempt,
			"sql":     attempt.SQL,
			"valid":   attempt.Valid,
			"error":   attempt.Error,
		})
	}
	payload["attempts"] = attempts
	return payload
}
