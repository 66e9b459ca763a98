package history

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: not found")

// Run is one recorded question run with its full attempt trail.
type Run struct {
	RunID      int64
	Question   string
	Status     string
	FinalSQL   string
	DurationMs int64
	CreatedAt  time.Time
	Attempts   []Attempt
}

type Attempt struct {
	Attempt int
	SQL     string
	Valid   bool
	Error   string
}
