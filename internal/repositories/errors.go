package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrPermissionDenied indicates row-level security rejected the statement.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConstraintViolation indicates a check, foreign key or not-null constraint failed.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidField indicates a write named a field that is unknown or read-only.
	ErrInvalidField = errors.New("invalid field")
)
