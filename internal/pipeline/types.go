package pipeline

import (
	"fmt"
	"strings"

	"github.com/queryforge/queryforge/internal/schema"
)

// SubProblem is one clause-scoped fragment of the question, tagged with the
// tables it depends on. Immutable after decomposition.
type SubProblem struct {
	Clause string   `json:"clause"`
	Goal   string   `json:"goal"`
	Tables []string `json:"tables"`
}

// JoinSpec names two tables and the column predicate connecting them.
type JoinSpec struct {
	LeftTable   string `json:"left_table"`
	LeftColumn  string `json:"left_column"`
	RightTable  string `json:"right_table"`
	RightColumn string `json:"right_column"`
	Operator    string `json:"operator,omitempty"`
	JoinType    string `json:"join_type,omitempty"`
}

func (j JoinSpec) Predicate() string {
	op := j.Operator
	if op == "" {
		op = "="
	}
	return fmt.Sprintf("%s.%s %s %s.%s", j.LeftTable, j.LeftColumn, op, j.RightTable, j.RightColumn)
}

// Decomposition is the complete output of the schema decomposer: an ordered
// set of sub-problems plus the joins relating the tables they touch.
type Decomposition struct {
	SubProblems []SubProblem `json:"subproblems"`
	Joins       []JoinSpec   `json:"joins"`
}

// Validate checks the shape invariant: every table referenced by a join must
// appear in at least one sub-problem's dependency set.
func (d Decomposition) Validate() error {
	if len(d.SubProblems) == 0 {
		return fmt.Errorf("decomposition has no subproblems")
	}
	referenced := map[string]bool{}
	for _, sp := range d.SubProblems {
		if strings.TrimSpace(sp.Goal) == "" {
			return fmt.Errorf("subproblem with empty goal")
		}
		for _, table := range sp.Tables {
			referenced[strings.ToLower(table)] = true
		}
	}
	for _, join := range d.Joins {
		for _, table := range []string{join.LeftTable, join.RightTable} {
			if strings.TrimSpace(table) == "" {
				return fmt.Errorf("join with empty table reference")
			}
			if !referenced[strings.ToLower(table)] {
				return fmt.Errorf("join references table %q not used by any subproblem", table)
			}
		}
	}
	return nil
}

// QueryPlan is the engine-agnostic intermediate representation handed to SQL
// synthesis. It is a model-produced artifact validated for shape only.
type QueryPlan struct {
	Steps        []string   `json:"steps"`
	Columns      []string   `json:"columns"`
	Filters      []string   `json:"filters"`
	Joins        []JoinSpec `json:"joins"`
	Aggregations []string   `json:"aggregations"`
	GroupBy      []string   `json:"group_by"`
	OrderBy      []string   `json:"order_by"`
	Limit        int        `json:"limit,omitempty"`
}

type ValidationResult struct {
	Valid bool
	Error string
}

// CorrectionAttempt records one loop iteration: the candidate SQL (empty when
// normalization found none) and its validation outcome.
type CorrectionAttempt struct {
	Attempt int
	SQL     string
	Result  ValidationResult
}

// PriorFailure conditions a correction-mode synthesis on the previous
// candidate and the validator's complaint.
type PriorFailure struct {
	SQL   string
	Error string
}

// SynthesisInput carries everything one synthesis call needs. PriorFailure
// nil means fresh synthesis; non-nil means correction.
type SynthesisInput struct {
	Question      string
	Schema        schema.DbSchema
	Decomposition Decomposition
	Plan          QueryPlan
	PriorFailure  *PriorFailure
}
