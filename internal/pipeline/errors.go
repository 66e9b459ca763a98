package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSQLFound means normalization could not locate a SQL statement in
	// model output. The loop treats it as a failed attempt, not a fatal error.
	ErrNoSQLFound = errors.New("no sql statement found in model output")

	// ErrValidatorUnavailable marks infrastructure failures from the
	// warehouse. The loop never spends correction attempts on it.
	ErrValidatorUnavailable = errors.New("validator unavailable")
)

// DecompositionError wraps unparsable or invalid decomposition output.
// Fatal for the question; the loop does not retry decomposition.
type DecompositionError struct {
	Err error
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("decompose question: %v", e.Err)
}

func (e *DecompositionError) Unwrap() error { return e.Err }

// PlanningError wraps model output that cannot satisfy the minimum query
// plan shape. Fatal for the question.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("plan query: %v", e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// CorrectionFailure is the loop's terminal failure. It carries every attempt
// in order so callers can inspect each candidate and its error.
type CorrectionFailure struct {
	Question string
	Attempts []CorrectionAttempt
	// Err is set when the loop aborted on an infrastructure failure rather
	// than exhausting its attempt budget.
	Err error
}

func (e *CorrectionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question %q aborted after %d attempt(s): %v", e.Question, len(e.Attempts), e.Err)
	}
	return fmt.Sprintf("question %q failed validation after %d attempt(s)", e.Question, len(e.Attempts))
}

func (e *CorrectionFailure) Unwrap() error { return e.Err }
