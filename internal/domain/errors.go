package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound means the sessionId is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConflict means a submission's (step, instance, nonce) no longer
	// matches the session's active instance, or a concurrent writer won the
	// compare-and-swap. Recoverable: the client resyncs and resubmits.
	ErrConflict = errors.New("out of sync with active step instance")

	// ErrSessionExists means the user already has an active session.
	// CreateSession enforces at most one active session per user.
	ErrSessionExists = errors.New("user already has an active session")

	// ErrProfileNotFound means no profile was generated for the user yet.
	ErrProfileNotFound = errors.New("profile not found")
)

// ValidationError means a submitted payload does not satisfy the step's
// input kind. The session is never mutated on validation failure.
type ValidationError struct {
	StepID  StepID
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer for step %s: %s", e.StepID, e.Message)
}

// InvalidStepError means the registry was asked about a step id it does not
// know. This is a deployment mismatch between client and server step tables,
// not a user error, and is logged loudly.
type InvalidStepError struct {
	StepID StepID
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("unknown step id %q", e.StepID)
}

// PersistenceError wraps a transient store failure. Nothing was partially
// applied; callers may retry with backoff.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
