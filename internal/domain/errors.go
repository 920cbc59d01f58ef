package domain

import "errors"

// Sentinel errors shared across the scoring pipeline. Callers match
// with errors.Is and map them to API status codes at the edge.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed request or record.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotTrained indicates fitted state was used before Fit.
	ErrNotTrained = errors.New("transform state not fitted")

	// ErrSchemaMismatch indicates the classifier was trained on a
	// different feature schema than the loaded fitted state.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrModelUnavailable indicates no classifier is loaded; the
	// detector falls back to degraded scoring.
	ErrModelUnavailable = errors.New("classifier unavailable")
)
