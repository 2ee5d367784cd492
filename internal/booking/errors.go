package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error categories reported to callers.
const (
	CategoryValidation = "validation"
	CategoryConflict   = "conflict"
	CategoryServer     = "server"
)

// ValidationError reports a request that cannot be booked as sent. It is
// never retried.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid reservation request: " + strings.Join(e.Problems, "; ")
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// ConflictError reports that a provider is already booked for an
// intersecting window. The user may retry with another slot.
type ConflictError struct {
	ProviderID uint64
	Start      time.Time
	End        time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("provider %d is already booked between %s and %s",
		e.ProviderID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// SchemaError reports a column mismatch that survived the one fallback
// attempt.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("schema mismatch on %s: %v", e.Table, e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// PersistenceError wraps any other database failure. The transaction has
// been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Category maps err onto validation, conflict or server.
func Category(err error) string {
	var (
		ve *ValidationError
		ce *ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return CategoryValidation
	case errors.As(err, &ce):
		return CategoryConflict
	}
	return CategoryServer
}
