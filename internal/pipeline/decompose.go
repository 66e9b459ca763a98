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

var decomposeSignature = llm.Signature{
	Name: "decompose",
	System: "You decompose a natural-language database question into clause-level " +
		"subproblems (WHERE, GROUP BY, JOIN, ORDER BY, HAVING, LIMIT, ...) and the " +
		"table joins they require. Only reference tables and columns from the given schema. " +
		"Respond with a single JSON object of the form " +
		`{"subproblems":[{"clause":"...","goal":"...","tables":["..."]}],` +
		`"joins":[{"left_table":"...","left_column":"...","right_table":"...","right_column":"...","operator":"="}]}.`,
	JSONOnly: true,
}

// Decomposer turns a question plus schema into a Decomposition with a single
// structured model call. It never retries internally; a parse failure is the
// caller's problem.
type Decomposer struct {
	client llm.Client
}

func NewDecomposer(client llm.Client) *Decomposer {
	return &Decomposer{client: client}
}

func (d *Decomposer) Decompose(ctx context.Context, question string, dbSchema schema.DbSchema) (Decomposition, error) {
	if strings.TrimSpace(question) == "" {
		return Decomposition{}, fmt.Errorf("question is required")
	}
	if err := dbSchema.Validate(); err != nil {
		return Decomposition{}, err
	}

	prompt := fmt.Sprintf("Schema:\n%s\nQuestion:\n%s", schema.RenderPrompt(dbSchema), strings.TrimSpace(question))
	output, err := d.client.Predict(ctx, decomposeSignature, prompt)
	observability.ObserveModelCall(decomposeSignature.Name, err == nil)
	if err != nil {
		return Decomposition{}, fmt.Errorf("decompose model call: %w", err)
	}

	decomposition, err := parseDecomposition(output)
	if err != nil {
		return Decomposition{}, &DecompositionError{Err: err}
	}
	return decomposition, nil
}

func parseDecomposition(output string) (Decomposition, error) {
	body, err := extractJSONObject(output)
	if err != nil {
		return Decomposition{}, err
	}
	var decomposition Decomposition
	if err := json.Unmarshal([]byte(body), &decomposition); err != nil {
		return Decomposition{}, fmt.Errorf("unmarshal decomposition: %w", err)
	}
	if err := decomposition.Validate(); err != nil {
		return Decomposition{}, err
	}
	return decomposition, nil
}

// extractJSONObject finds the outermost JSON object in model output, which
// may be wrapped in fences or prose even when JSON mode was requested.
func extractJSONObject(output string) (string, error) {
	start := strings.IndexByte(output, '{')
	end := strings.LastIndexByte(output, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return output[start : end+1], nil
}
