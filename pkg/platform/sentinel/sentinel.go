// Package sentinel holds the infrastructure facts that stores, guards and the
// auth backend adapters report. Services translate them into domain errors or
// outcomes; input validation lives in pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound: no record for the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the record or lock already exists.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the dependency could not be reached or its breaker is open.
	ErrUnavailable = errors.New("unavailable")
)
