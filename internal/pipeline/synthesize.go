package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/queryforge/queryforge/internal/llm"
	"github.com/queryforge/queryforge/internal/observability"
	"github.com/queryforge/queryforge/internal/schema"
)

// DefaultRules are injected into every synthesis prompt.
var DefaultRules = []string{
	"Use explicit JOINs, never WHERE-based joins.",
	"Use fully qualified column names (table.column).",
	"Use table aliases to shorten table names.",
	"Use column aliases for computed columns.",
	"Only use SQL features supported by the target dialect given in the schema.",
	"Make sure GROUP BY lists every non-aggregated output column.",
	"Avoid SELECT *; list columns explicitly.",
	"The query must address every subproblem in the decomposition.",
	"Output exactly one SQL statement.",
}

var synthesizeSignature = llm.Signature{
	Name: "synthesize",
	System: "You write a single executable SQL query for the given dialect. " +
		"Follow the plan and the rules exactly. Return ONLY SQL, no markdown, no explanation.",
}

var correctSignature = llm.Signature{
	Name: "correct",
	System: "You fix a SQL query that failed validation. Analyze the validator error, " +
		"keep the query's original intent, and return ONLY the corrected SQL, " +
		"no markdown, no explanation.",
}

// Synthesizer renders a QueryPlan into SQL text. With PriorFailure set the
// same call site produces a corrected query conditioned on the failing SQL
// and the validator's error, so each correction cycle costs one model call.
type Synthesizer struct {
	client llm.Client
	rules  []string
}

func NewSynthesizer(client llm.Client, rules []string) *Synthesizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Synthesizer{client: client, rules: rules}
}

func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	sig := synthesizeSignature
	if in.PriorFailure != nil {
		sig = correctSignature
	}

	output, err := s.client.Predict(ctx, sig, s.buildPrompt(in))
	observability.ObserveModelCall(sig.Name, err == nil)
	if err != nil {
		return "", fmt.Errorf("%s model call: %w", sig.Name, err)
	}
	return ExtractSQL(output)
}

func (s *Synthesizer) buildPrompt(in SynthesisInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema:\n%s\n", schema.RenderPrompt(in.Schema))

	b.WriteString("Subproblems:\n")
	for i, sp := range in.Decomposition.SubProblems {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, sp.Clause, sp.Goal)
	}

	b.WriteString("Plan:\n")
	for i, step := range in.Plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "Target columns: %s\n", strings.Join(in.Plan.Columns, ", "))
	if len(in.Plan.Filters) > 0 {
		fmt.Fprintf(&b, "Filters: %s\n", strings.Join(in.Plan.Filters, "; "))
	}
	for _, join := range in.Plan.Joins {
		fmt.Fprintf(&b, "Join: %s\n", join.Predicate())
	}
	if len(in.Plan.Aggregations) > 0 {
		fmt.Fprintf(&b, "Aggregations: %s\n", strings.Join(in.Plan.Aggregations, ", "))
	}
	if len(in.Plan.GroupBy) > 0 {
		fmt.Fprintf(&b, "Group by: %s\n", strings.Join(in.Plan.GroupBy, ", "))
	}
	if len(in.Plan.OrderBy) > 0 {
		fmt.Fprintf(&b, "Order by: %s\n", strings.Join(in.Plan.OrderBy, ", "))
	}
	if in.Plan.Limit > 0 {
		fmt.Fprintf(&b, "Limit: %d\n", in.Plan.Limit)
	}

	b.WriteString("Rules:\n")
	for _, rule := range s.rules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}

	fmt.Fprintf(&b, "Question:\n%s\n", strings.TrimSpace(in.Question))

	if in.PriorFailure != nil {
		b.WriteString("\nThe previous attempt failed validation.\n")
		if strings.TrimSpace(in.PriorFailure.SQL) != "" {
			fmt.Fprintf(&b, "Previous SQL:\n%s\n", in.PriorFailure.SQL)
		}
		fmt.Fprintf(&b, "Validator error:\n%s\n", in.PriorFailure.Error)
	}
	return b.String()
}
