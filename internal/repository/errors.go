// Package repository holds the SQL of the reservation engine. Every method
// takes a database.Querier so it runs inside the caller's transaction; the
// dialect rebinds placeholders and classifies driver errors.
package repository

import "errors"

// ErrProviderNotFound is returned when a referenced provider does not exist.
// Handlers should translate this into a validation failure.
var ErrProviderNotFound = errors.New("provider not found")
