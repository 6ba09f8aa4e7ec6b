/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations wrap their failures with ErrStoreUnavailable so
  callers can retry; missing goal configuration is NOT an error (it is a
  tagged evaluation outcome, see goal.go).

ERROR CATEGORIES:
  1. Input errors - malformed dates, negative durations (boundary only)
  2. Store errors - persistence failures, surfaced for retry
  3. Rebuild errors - the clear phase is the only fatal one

USAGE:
  if errors.Is(err, engine.ErrStoreUnavailable) {
      // retry the aggregation for this key
  }

SEE ALSO:
  - store.go: Interfaces whose implementations produce these errors
  - rebuild.go: Partial-failure handling during replay
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed dates, negative durations
	// or out-of-range percentages. Rejected at the boundary; never reaches
	// the aggregator.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps underlying persistence failures. The
	// aggregation for that key is aborted and may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by point queries for keys with no row where
	// absence is meaningful to the caller (e.g. goal config lookups by id).
	// Note: a missing completion record is NOT an error; it means "no usage
	// data recorded for this day".
	ErrNotFound = errors.New("not found")

	// ErrRebuildRunning is returned when a historical rebuild is requested
	// while one is already in flight. Rebuild runs exclusively.
	ErrRebuildRunning = errors.New("rebuild already running")

	// ErrRebuildClearFailed is returned when the clear phase of a rebuild
	// fails. This is fatal: the rebuild aborts with prior state untouched.
	ErrRebuildClearFailed = errors.New("rebuild clear phase failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidSessionError reports a session rejected at the recording boundary.
type InvalidSessionError struct {
	CategoryID CategoryID
	Reason     string
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("invalid session for %s: %s", e.CategoryID, e.Reason)
}

func (e *InvalidSessionError) Unwrap() error { return ErrInvalidInput }

// InvalidPercentError reports an out-of-range completion percentage.
type InvalidPercentError struct {
	Value string
}

func (e *InvalidPercentError) Error() string {
	return fmt.Sprintf("completion percent %s outside [0,100]", e.Value)
}

func (e *InvalidPercentError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrRebuildRunning)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
