package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/queryforge/queryforge/internal/llm"
	"github.com/queryforge/queryforge/internal/observability"
	"github.com/queryforge/queryforge/internal/schema"
	"github.com/queryforge/queryforge/internal/warehouse"
)

const DefaultMaxCorrectionAttempts = 3

// Terminal states of a question run.
const (
	StatusDone        = "done"
	StatusFailed      = "failed"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// RunRecord is handed to an optional RunSink when a question reaches a
// terminal state.
type RunRecord struct {
	Question string
	Status   string
	FinalSQL string
	Attempts []CorrectionAttempt
	Duration time.Duration
}

type RunSink interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

type Options struct {
	// MaxCorrectionAttempts caps the total number of SQL candidates the loop
	// will validate, counting the first synthesis as attempt 1.
	MaxCorrectionAttempts int
	Rules                 []string
	Logger                *slog.Logger
	Recorder              RunSink
}

// Loop orchestrates decompose -> plan -> synthesize -> validate with bounded
// corrections. The model client and warehouse are injected once at
// construction and reused across every attempt of every question.
type Loop struct {
	decomposer  *Decomposer
	planner     *Planner
	synthesizer *Synthesizer
	validator   *Validator
	maxAttempts int
	logger      *slog.Logger
	recorder    RunSink
}

func NewLoop(client llm.Client, wh warehouse.Warehouse, opts Options) *Loop {
	maxAttempts := opts.MaxCorrectionAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxCorrectionAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		decomposer:  NewDecomposer(client),
		planner:     NewPlanner(client),
		synthesizer: NewSynthesizer(client, opts.Rules),
		validator:   NewValidator(wh),
		maxAttempts: maxAttempts,
		logger:      logger,
		recorder:    opts.Recorder,
	}
}

// AnswerQuestion runs one question through the pipeline and returns the
// first SQL candidate the warehouse accepts. maxCorrectionAttempts caps the
// total number of candidates validated (the first synthesis counts as
// attempt 1); zero or negative falls back to the configured default. On
// exhausted attempts or a validator outage it returns a *CorrectionFailure
// carrying the full attempt history; decomposition and planning failures
// surface as their own types.
func (l *Loop) AnswerQuestion(ctx context.Context, question string, dbSchema schema.DbSchema, maxCorrectionAttempts int) (string, error) {
	start := time.Now()
	if maxCorrectionAttempts < 1 {
		maxCorrectionAttempts = l.maxAttempts
	}

	decomposition, err := l.decomposer.Decompose(ctx, question, dbSchema)
	if err != nil {
		l.finish(ctx, RunRecord{Question: question, Status: StatusError, Duration: time.Since(start)})
		return "", err
	}
	l.logger.DebugContext(ctx, "question decomposed",
		slog.Int("subproblems", len(decomposition.SubProblems)),
		slog.Int("joins", len(decomposition.Joins)),
	)

	plan, err := l.planner.Plan(ctx, question, dbSchema, decomposition)
	if err != nil {
		l.finish(ctx, RunRecord{Question: question, Status: StatusError, Duration: time.Since(start)})
		return "", err
	}

	attempts := make([]CorrectionAttempt, 0, maxCorrectionAttempts)
	var prior *PriorFailure

	for attempt := 1; attempt <= maxCorrectionAttempts; attempt++ {
		sqlText, err := l.synthesizer.Synthesize(ctx, SynthesisInput{
			Question:      question,
			Schema:        dbSchema,
			Decomposition: decomposition,
			Plan:          plan,
			PriorFailure:  prior,
		})
		if err != nil {
			if !errors.Is(err, ErrNoSQLFound) {
				l.finish(ctx, RunRecord{Question: question, Status: StatusError, Attempts: attempts, Duration: time.Since(start)})
				return "", err
			}
			// A response with no SQL in it consumes the attempt without a
			// warehouse round-trip.
			result := ValidationResult{Valid: false, Error: err.Error()}
			attempts = append(attempts, CorrectionAttempt{Attempt: attempt, Result: result})
			observability.ObserveValidation("no_sql")
			prior = &PriorFailure{Error: err.Error()}
			l.logger.WarnContext(ctx, "synthesis produced no sql", slog.Int("attempt", attempt))
			continue
		}
		if strings.TrimSpace(sqlText) == "" {
			result := ValidationResult{Valid: false, Error: ErrNoSQLFound.Error()}
			attempts = append(attempts, CorrectionAttempt{Attempt: attempt, Result: result})
			observability.ObserveValidation("no_sql")
			prior = &PriorFailure{Error: ErrNoSQLFound.Error()}
			continue
		}

		result, err := l.validator.Validate(ctx, sqlText)
		if err != nil {
			attempts = append(attempts, CorrectionAttempt{
				Attempt: attempt,
				SQL:     sqlText,
				Result:  ValidationResult{Valid: false, Error: err.Error()},
			})
			observability.ObserveValidation("unavailable")
			failure := &CorrectionFailure{Question: question, Attempts: attempts, Err: err}
			l.finish(ctx, RunRecord{Question: question, Status: StatusUnavailable, Attempts: attempts, Duration: time.Since(start)})
			return "", failure
		}

		attempts = append(attempts, CorrectionAttempt{Attempt: attempt, SQL: sqlText, Result: result})
		if result.Valid {
			observability.ObserveValidation("valid")
			l.logger.InfoContext(ctx, "question answered",
				slog.Int("attempts", len(attempts)),
				slog.String("duration", time.Since(start).String()),
			)
			l.finish(ctx, RunRecord{Question: question, Status: StatusDone, FinalSQL: sqlText, Attempts: attempts, Duration: time.Since(start)})
			return sqlText, nil
		}

		observability.ObserveValidation("invalid")
		l.logger.WarnContext(ctx, "candidate rejected",
			slog.Int("attempt", attempt),
			slog.String("error", result.Error),
		)
		prior = &PriorFailure{SQL: sqlText, Error: result.Error}
	}

	failure := &CorrectionFailure{Question: question, Attempts: attempts}
	l.finish(ctx, RunRecord{Question: question, Status: StatusFailed, Attempts: attempts, Duration: time.Since(start)})
	return "", failure
}

func (l *Loop) finish(ctx context.Context, run RunRecord) {
	observability.ObserveQuestion(run.Status, len(run.Attempts), run.Duration)
	l.record(ctx, run)
}

func (l *Loop) record(ctx context.Context, run RunRecord) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordRun(ctx, run); err != nil {
		l.logger.WarnContext(ctx, "record run failed", slog.Any("error", err))
	}
}
