package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/queryforge/queryforge/internal/auth"
	"github.com/queryforge/queryforge/internal/pipeline"
)

type questionRequest struct {
	Question              string `json:"question"`
	MaxCorrectionAttempts int    `json:"max_correction_attempts"`
}

func handleQuestion(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}
	if deps.Introspector == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAsk); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var req questionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid question request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if req.MaxCorrectionAttempts < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ATTEMPTS", "max_correction_attempts must be >= 1", false, nil)
		return
	}

	dbSchema, err := deps.Introspector.Introspect(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to introspect schema", true, map[string]any{"details": err.Error()})
		return
	}

	sqlText, err := deps.Answerer.AnswerQuestion(r.Context(), req.Question, dbSchema, req.MaxCorrectionAttempts)
	if err != nil {
		writeQuestionError(deps, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"question": req.Question,
		"sql":      sqlText,
	})
}

func writeQuestionError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	var failure *pipeline.CorrectionFailure
	if errors.As(err, &failure) {
		extra := map[string]any{"attempts": attemptPayload(failure.Attempts)}
		if errors.Is(err, pipeline.ErrValidatorUnavailable) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "VALIDATOR_UNAVAILABLE", failure.Err.Error(), true, extra)
			return
		}
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_VALID_SQL", err.Error(), false, extra)
		return
	}

	var decompErr *pipeline.DecompositionError
	if errors.As(err, &decompErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "DECOMPOSE_FAILED", err.Error(), true, nil)
		return
	}
	var planErr *pipeline.PlanningError
	if errors.As(err, &planErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "PLAN_FAILED", err.Error(), true, nil)
		return
	}

	if deps.Logger != nil {
		deps.Logger.ErrorContext(r.Context(), "question failed", "error", err)
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "QUESTION_FAILED", err.Error(), true, nil)
}

func attemptPayload(attempts []pipeline.CorrectionAttempt) []map[string]any {
	payload := make([]map[string]any, 0, len(attempts))
	for _, attempt := range attempts {
		payload = append(payload, map[string]any{
			"attempt": attempt.Attempt,
			"sql":     attempt.SQL,
			"valid":   attempt.Result.Valid,
			"error":   attempt.Result.Error,
		})
	}
	return payload
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
