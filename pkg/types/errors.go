package types

// ============================================================================
// Search Error Taxonomy
// Purpose: errors shared by the generator, matcher, worker pool and engine
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpec indicates malformed search parameters. Caller error, never retried.
	ErrInvalidSpec = errors.New("invalid search spec")

	// ErrWorkerFailure indicates a worker crashed or hit a resource limit; the whole search is aborted.
	ErrWorkerFailure = errors.New("worker failure")

	// ErrCancelled indicates the caller cancelled the search before it completed.
	ErrCancelled = errors.New("search cancelled")
)

// InvalidSpecf returns an error wrapping ErrInvalidSpec with a formatted reason.
func InvalidSpecf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, fmt.Sprintf(format, args...))
}

// WorkerError carries the context of a failed worker
type WorkerError struct {
	WorkerID int   // Worker that failed
	Index    int64 // Candidate index being evaluated when it failed
	Cause    error // Underlying error or recovered panic
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d failed at index %d: %v", e.WorkerID, e.Index, e.Cause)
}

// Is makes errors.Is(err, ErrWorkerFailure) hold for every WorkerError.
func (e *WorkerError) Is(target error) bool {
	return target == ErrWorkerFailure
}

func (e *WorkerError) Unwrap() error {
	return e.Cause
}
