package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller input rejected before a turn starts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig marks a component constructed with unusable settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStepLimitExceeded is returned when a turn exhausts its model-call budget.
	ErrStepLimitExceeded = errors.New("step limit exceeded")

	// ErrStoreUnavailable is matched by every persistence failure of a fallible
	// checkpoint store.
	ErrStoreUnavailable = errors.New("checkpoint store unavailable")

	// ErrTurnInFlight is returned when a turn for the same thread is already
	// running and the admission policy rejects concurrent turns.
	ErrTurnInFlight = errors.New("turn already in flight for thread")
)

// StepLimitError reports the exhausted budget of a turn.
type StepLimitError struct {
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("%s: %d model calls", ErrStepLimitExceeded, e.Limit)
}

// Is lets errors.Is(err, ErrStepLimitExceeded) match.
func (e *StepLimitError) Is(target error) bool { return target == ErrStepLimitExceeded }

// StoreError wraps a failure of the medium backing a checkpoint store.
type StoreError struct {
	Op       string
	ThreadID string
	Err      error
}

func (e *StoreError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("checkpoint store %s (thread %s): %v", e.Op, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("checkpoint store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying medium error.
func (e *StoreError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStoreUnavailable) match.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// NewStoreError builds a StoreError; a nil err yields nil.
func NewStoreError(op, threadID string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, ThreadID: threadID, Err: err}
}
