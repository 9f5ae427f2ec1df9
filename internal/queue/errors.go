package queue

import "errors"

var (
	// ErrNotFound indicates the referenced job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrNotCancellable indicates a cancel request against a terminal job.
	// The request is rejected without side effects.
	ErrNotCancellable = errors.New("job is not cancellable")

	// ErrNotRetryable indicates a retry request against a job that is not failed.
	// The request is rejected without side effects.
	ErrNotRetryable = errors.New("job is not retryable")

	// ErrConflict indicates the job's status changed between the caller's read
	// and its requested transition.
	ErrConflict = errors.New("job status changed concurrently")

	// ErrInvalidTransition indicates a requested edge that is not part of the
	// state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)
