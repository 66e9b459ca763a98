package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryforge/queryforge/internal/llm"
	"github.com/queryforge/queryforge/internal/observability"
	"github.com/queryforge/queryforge/internal/schema"
)

var planSignature = llm.Signature{
	Name: "plan",
	System: "You are a SQL planning assistant. Given a question, a schema, and a clause-level " +
		"decomposition, produce a procedural query plan. Do NOT write SQL. " +
		"Respond with a single JSON object of the form " +
		`{"steps":["..."],"columns":["table.column"],"filters":["..."],` +
		`"joins":[{"left_table":"...","left_column":"...","right_table":"...","right_column":"..."}],` +
		`"aggregations":["..."],"group_by":["..."],"order_by":["..."],"limit":0}. ` +
		"columns must list every output column the query should return.",
	JSONOnly: true,
}

// Planner maps a Decomposition into a QueryPlan with one model call. Output
// that cannot satisfy the minimum shape (at least one target column) is a
// PlanningError; the planner does not retry.
type Planner struct {
	client llm.Client
}

func NewPlanner(client llm.Client) *Planner {
	return &Planner{client: client}
}

func (p *Planner) Plan(ctx context.Context, question string, dbSchema schema.DbSchema, decomposition Decomposition) (QueryPlan, error) {
	prompt := buildPlanPrompt(question, dbSchema, decomposition)
	output, err := p.client.Predict(ctx, planSignature, prompt)
	observability.ObserveModelCall(planSignature.Name, err == nil)
	if err != nil {
		return QueryPlan{}, fmt.Errorf("plan model call: %w", err)
	}

	plan, err := parsePlan(output)
	if err != nil {
		return QueryPlan{}, &PlanningError{Err: err}
	}
	return plan, nil
}

func buildPlanPrompt(question string, dbSchema schema.DbSchema, decomposition Decomposition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema:\n%s\n", schema.RenderPrompt(dbSchema))
	b.WriteString("Subproblems:\n")
	for i, sp := range decomposition.SubProblems {
		fmt.Fprintf(&b, "%d. [%s] %s (tables: %s)\n", i+1, sp.Clause, sp.Goal, strings.Join(sp.Tables, ", "))
	}
	if len(decomposition.Joins) > 0 {
		b.WriteString("Joins:\n")
		for _, join := range decomposition.Joins {
			fmt.Fprintf(&b, "- %s\n", join.Predicate())
		}
	}
	fmt.Fprintf(&b, "Question:\n%s", strings.TrimSpace(question))
	return b.String()
}

func parsePlan(output string) (QueryPlan, error) {
	body, err := extractJSONObject(output)
	if err != nil {
		return QueryPlan{}, err
	}
	var plan QueryPlan
	if err := json.Unmarshal([]byte(body), &plan); err != nil {
		return QueryPlan{}, fmt.Errorf("unmarshal query plan: %w", err)
	}
	if len(plan.Columns) == 0 {
		return QueryPlan{}, fmt.Errorf("query plan has no target columns")
	}
	for _, column := range plan.Columns {
		if strings.TrimSpace(column) == "" {
			return QueryPlan{}, fmt.Errorf("query plan has an empty target column")
		}
	}
	return plan, nil
}
