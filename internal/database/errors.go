package database

import "errors"

// Driver-independent classes of database failures. Dialect.Classify wraps a
// driver error with one of these so callers can use errors.Is.
var (
	ErrUndefinedColumn    = errors.New("undefined column")
	ErrUniqueViolation    = errors.New("unique violation")
	ErrExclusionViolation = errors.New("exclusion violation")
)
