package common

import "errors"

var (
	// ErrNotFound indicates the referenced competition or problem does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyJoined indicates a second join attempt for the same competition.
	// Expected concurrency outcome, not an operational error.
	ErrAlreadyJoined = errors.New("already joined")

	// ErrAlreadySubmitted indicates a result already exists for the member and
	// competition. Produced both by the advisory pre-check and by the unique
	// constraint on the results table when concurrent submissions race.
	ErrAlreadySubmitted = errors.New("already submitted")

	// ErrInvalidInput indicates a submission referencing an unknown problem id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoSummary indicates no aggregated summary exists for the requested
	// period. A member who never participated has no row; not an error.
	ErrNoSummary = errors.New("no summary")

	// ErrRetryable indicates a transient error that should be retried (e.g. network glitch)
	ErrRetryable = errors.New("retryable error")

	// ErrNonRetryable indicates a permanent error that should NOT be retried (e.g. invalid data)
	ErrNonRetryable = errors.New("non-retryable error")
)
