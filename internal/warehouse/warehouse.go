package warehouse

import "context"

// DryRunResult reports whether a statement passed the engine's dry run.
// Valid=false with Error set means the SQL itself was rejected; transport or
// session failures are returned as an error instead, so callers never confuse
// a broken warehouse with a broken query.
type DryRunResult struct {
	Valid bool
	Error string
}

type ResultSet struct {
	Columns []string
	Rows    [][]any
}

type Warehouse interface {
	DryRun(ctx context.Context, sql string) (DryRunResult, error)
	Execute(ctx context.Context, sql string, rowLimit int) (ResultSet, error)
}
