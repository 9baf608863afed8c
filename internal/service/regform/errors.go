package regform

import (
	"errors"
	"fmt"
)

// Sentinel errors for the registration form service layer.
var (
	ErrNotFound          = errors.New("registration not found")
	ErrFormNotFound      = errors.New("registration form not found")
	ErrValidation        = errors.New("invalid registration data")
	ErrAlreadyRegistered = errors.New("already registered")
)

// ValidationError identifies the field whose submitted data was rejected.
// It aborts the whole resolution pass.
type ValidationError struct {
	FieldID string
	Title   string
	Reason  string
}

func (e *ValidationError) Error() string {
	name := e.Title
	if name == "" {
		name = e.FieldID
	}
	return fmt.Sprintf("field %q: %s", name, e.Reason)
}

// Unwrap lets callers match any validation failure with errors.Is.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// BatchError ties a failed batch to the zero-based index of the offending
// submission. Nothing of the batch is stored.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string { return fmt.Sprintf("submission %d: %v", e.Index, e.Err) }

func (e *BatchError) Unwrap() error { return e.Err }
