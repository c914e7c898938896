package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied means the acting user does not own the test.
	ErrAccessDenied = errors.New("quiz: access denied")
	ErrNotFound     = errors.New("quiz: not found")
	ErrInvalidInput = errors.New("quiz: invalid input")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ReconcileError reports the first failed operation of a choice
// reconciliation. Operations before it were applied and are not undone.
type ReconcileError struct {
	QuestionID int64
	Op         Op
	Applied    int // operations that succeeded before Op
	Err        error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile question %d: %s failed after %d applied: %v", e.QuestionID, e.Op, e.Applied, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }
