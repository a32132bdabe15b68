package chat

import "errors"

// Error taxonomy for the conversation engine. Callers branch with errors.Is:
// validation and not-found errors map to client-facing 4xx responses,
// persistence errors are fatal for the request, and upstream errors are
// absorbed into the conversation instead of failing it.
var (
	// ErrValidation is returned when required input is missing.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a thread has no checkpoint.
	ErrNotFound = errors.New("thread not found")

	// ErrUpstream wraps failures of the external generation call.
	ErrUpstream = errors.New("upstream generation failed")

	// ErrPersistence wraps checkpoint store read/write failures.
	ErrPersistence = errors.New("checkpoint persistence failed")
)
