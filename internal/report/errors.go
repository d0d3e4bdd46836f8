package report

import "github.com/zeebo/errs"

var (
	// ErrInvalidInput is raised for a missing or malformed user id, date,
	// month, period or timezone. Not retriable.
	ErrInvalidInput = errs.Class("invalid input")
	// ErrNotFound is raised when the user has no row. A user without meals is
	// not an error.
	ErrNotFound = errs.Class("not found")
	// ErrStorageUnavailable wraps any failed read. Safe to retry.
	ErrStorageUnavailable = errs.Class("storage unavailable")
)
