package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/queryforge/queryforge/internal/llm"
)

type singleResponseClient struct {
	output    string
	err       error
	gotSig    llm.Signature
	gotPrompt string
}

func (c *singleResponseClient) Predict(_ context.Context, sig llm.Signature, prompt string) (string, error) {
	c.gotSig = sig
	c.gotPrompt = prompt
	return c.output, c.err
}

func TestDecomposeParsesStructuredOutput(t *testing.T) {
	client := &singleResponseClient{output: validDecomposition}
	d := NewDecomposer(client)

	decomposition, err := d.Decompose(context.Background(), "total sales by region", salesSchema())
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(decomposition.SubProblems) != 2 {
		t.Fatalf("subproblems = %d", len(decomposition.SubProblems))
	}
	if len(decomposition.Joins) != 1 {
		t.Fatalf("joins = %d", len(decomposition.Joins))
	}
	if !client.gotSig.JSONOnly {
		t.Fatal("decompose signature should request JSON output")
	}
	if !strings.Contains(client.gotPrompt, "## sales") {
		t.Fatalf("prompt missing schema rendering:\n%s", client.gotPrompt)
	}
}

func TestDecomposeUnwrapsProseAroundJSON(t *testing.T) {
	client := &singleResponseClient{output: "Here you go:\n" + validDecomposition + "\nHope that helps."}
	d := NewDecomposer(client)

	if _, err := d.Decompose(context.Background(), "q", salesSchema()); err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
}

func TestDecomposeRejectsJoinOnUnusedTable(t *testing.T) {
	client := &singleResponseClient{output: `{
		"subproblems": [{"clause": "WHERE", "goal": "filter", "tables": ["sales"]}],
		"joins": [{"left_table": "sales", "left_column": "region_id", "right_table": "region", "right_column": "id"}]
	}`}
	d := NewDecomposer(client)

	_, err := d.Decompose(context.Background(), "q", salesSchema())
	var decompErr *DecompositionError
	if !errors.As(err, &decompErr) {
		t.Fatalf("error type = %T (%v)", err, err)
	}
}

func TestDecomposeRejectsUnparsableOutput(t *testing.T) {
	client := &singleResponseClient{output: "the question breaks down into two parts"}
	d := NewDecomposer(client)

	_, err := d.Decompose(context.Background(), "q", salesSchema())
	var decompErr *DecompositionError
	if !errors.As(err, &decompErr) {
		t.Fatalf("error type = %T (%v)", err, err)
	}
}

func TestDecomposeModelErrorIsNotDecompositionError(t *testing.T) {
	client := &singleResponseClient{err: errors.New("rate limited")}
	d := NewDecomposer(client)

	_, err := d.Decompose(context.Background(), "q", salesSchema())
	if err == nil {
		t.Fatal("expected error")
	}
	var decompErr *DecompositionError
	if errors.As(err, &decompErr) {
		t.Fatal("transport failures must not be DecompositionError")
	}
}
