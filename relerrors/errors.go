// Package relerrors defines the typed error kinds surfaced by the
// relational match-and-split engine, following the same
// errors.NewKind(...).New(...) idiom the rest of this module's ancestry
// uses for user-facing error messages.
package relerrors

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrSchemaMismatch is returned when a transform-time schema does not
	// match the schema observed at fit time (column counts or roles).
	ErrSchemaMismatch = errors.NewKind("schema mismatch: %s")

	// ErrInvalidArgument is returned for out-of-range or missing
	// hyperparameters.
	ErrInvalidArgument = errors.NewKind("invalid argument: %s")

	// ErrNullInTarget is returned when a target column contains NaN or
	// Inf.
	ErrNullInTarget = errors.NewKind("target column %q contains NaN or Inf at row %d")

	// ErrNumericOverflow is returned when a requested bin count would
	// exceed the guard of 10^6.
	ErrNumericOverflow = errors.NewKind("numeric overflow: %s")

	// ErrNotFitted is returned when Predict/Transform is called before
	// Fit.
	ErrNotFitted = errors.NewKind("%s used before Fit")

	// ErrSerializationError is returned for malformed persisted
	// documents.
	ErrSerializationError = errors.NewKind("malformed persisted document: %s")

	// ErrInvalidData is returned when the table provider cannot support
	// the requested operation (e.g. no join-key column).
	ErrInvalidData = errors.NewKind("invalid data: %s")
)
