package completion

import "errors"

var (
	// ErrInvalidConfiguration marks a course config or question bank that cannot be scored.
	// It is fatal to the calling operation.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDuplicateSubmission names a replayed quiz submission. Reconcile reports it through
	// Outcome.Duplicate instead of returning it.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrAttemptLimitExceeded is a warning carried in Outcome.Warnings.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
)
