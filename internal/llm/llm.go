package llm

import "context"

// Signature names one model capability and carries its system instruction.
// The pipeline defines one signature per call kind (decompose, plan,
// synthesize) and treats the client's reasoning strategy as opaque.
type Signature struct {
	Name   string
	System string
	// JSONOnly asks the model to emit a single JSON object; the caller is
	// responsible for parsing it into a typed value.
	JSONOnly bool
}

type Client interface {
	Predict(ctx context.Context, sig Signature, prompt string) (string, error)
}
