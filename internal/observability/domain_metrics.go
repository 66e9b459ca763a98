package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_model_calls_total",
			Help: "Total number of model invocations by signature and outcome.",
		},
		[]string{"signature", "outcome"},
	)
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_validations_total",
			Help: "Total number of candidate validations by outcome (valid, invalid, no_sql, unavailable).",
		},
		[]string{"outcome"},
	)
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_questions_total",
			Help: "Total number of questions by terminal state.",
		},
		[]string{"status"},
	)
	questionAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queryforge_question_attempts",
			Help:    "SQL candidates validated per question.",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)
	questionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queryforge_question_duration_seconds",
			Help:    "End-to-end question latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		},
	)
)

func init() {
	prometheus.MustRegister(
		modelCallsTotal,
		validationsTotal,
		questionsTotal,
		questionAttempts,
		questionDurationSeconds,
	)
}

func ObserveModelCall(signature string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	modelCallsTotal.WithLabelValues(signature, outcome).Inc()
}

func ObserveValidation(outcome string) {
	validationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveQuestion(status string, attempts int, elapsed time.Duration) {
	questionsTotal.WithLabelValues(status).Inc()
	if attempts > 0 {
		questionAttempts.Observe(float64(attempts))
	}
	questionDurationSeconds.Observe(elapsed.Seconds())
}
