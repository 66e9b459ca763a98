package pipeline

import (
	"context"
	"fmt"

	"github.com/queryforge/queryforge/internal/warehouse"
)

// Validator checks candidate SQL against the warehouse dry run. Dry runs
// read no rows and incur no cost. An unreachable warehouse surfaces as
// ErrValidatorUnavailable, never as an Invalid result.
type Validator struct {
	warehouse warehouse.Warehouse
}

func NewValidator(wh warehouse.Warehouse) *Validator {
	return &Validator{warehouse: wh}
}

func (v *Validator) Validate(ctx context.Context, sql string) (ValidationResult, error) {
	result, err := v.warehouse.DryRun(ctx, sql)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("%w: %v", ErrValidatorUnavailable, err)
	}
	return ValidationResult{Valid: result.Valid, Error: result.Error}, nil
}
