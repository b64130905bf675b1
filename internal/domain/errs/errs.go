// Package errs holds the sentinel errors shared by the analysis core, the
// reference stores and the fertilizer classifier. Callers wrap them with
// fmt.Errorf("...: %w", err) and match with errors.Is.
package errs

import "errors"

var (
	// ErrInsufficientData means a series is too short to fit or estimate.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNotFound means reference data for a crop or market is missing.
	ErrNotFound = errors.New("not found")
	// ErrUnknownCategory means a categorical value was not in the encoder vocabulary.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrDivideByZero means a ratio was requested over a zero-mean series.
	ErrDivideByZero = errors.New("divide by zero")
	// ErrInvalidArgument means a caller-supplied value is out of its domain.
	ErrInvalidArgument = errors.New("invalid argument")
)
