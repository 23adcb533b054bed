package exam

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error taxonomy of the exam workflow. Callers match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrPersistence  = errors.New("attempt not recorded")
)

// PersistenceError reports that a graded attempt could not be written to
// durable storage. The score it belongs to is still valid.
type PersistenceError struct {
	AttemptID uuid.UUID
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record attempt %s: %v", e.AttemptID, e.Err)
}

// Unwrap lets errors.Is match both ErrPersistence and the underlying cause.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func invalidState(op string, state State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, state)
}
