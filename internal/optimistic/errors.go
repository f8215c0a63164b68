package optimistic

import (
	"errors"
	"fmt"
)

var (
	// ErrMutationInProgress indicates the key already has an unresolved mutation.
	ErrMutationInProgress = errors.New("mutation already in progress")
	// ErrRecordNotFound indicates the key is not part of the collection.
	ErrRecordNotFound = errors.New("record not found")
	// ErrEmptyMutation indicates a mutation without any field updates.
	ErrEmptyMutation = errors.New("mutation has no field updates")
)

// ConflictError reports a mutation request on a key that is already pending.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	if e.Key == "" {
		return ErrMutationInProgress.Error()
	}
	return fmt.Sprintf("mutation already in progress for %s", e.Key)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrMutationInProgress
}

// Reason categorises why the authoritative write rejected a mutation.
type Reason string

const (
	ReasonPermissionDenied    Reason = "permission-denied"
	ReasonConstraintViolation Reason = "constraint-violation"
	ReasonUnknown             Reason = "unknown"
)

// WriteError is returned by write collaborators when the backend refuses a
// mutation.
type WriteError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *WriteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("write rejected: %s", e.reason())
	}
	return fmt.Sprintf("write rejected (%s): %s", e.reason(), msg)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) reason() Reason {
	if e.Reason == "" {
		return ReasonUnknown
	}
	return e.Reason
}

// ReasonOf extracts the failure category from err. Errors that carry no
// category are unknown.
func ReasonOf(err error) Reason {
	var writeErr *WriteError
	if errors.As(err, &writeErr) {
		return writeErr.reason()
	}
	return ReasonUnknown
}
