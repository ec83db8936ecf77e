package core

import "sync"

// DefaultMaxSteps is the per-turn model-call budget used when none is given.
const DefaultMaxSteps = 7

// StepLimiter enforces a maximum number of model invocations per turn.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a limiter allowing max model calls.
// A max <= 0 falls back to DefaultMaxSteps; turns are never unbounded.
func NewStepLimiter(max int) *StepLimiter {
	if max <= 0 {
		max = DefaultMaxSteps
	}
	return &StepLimiter{max: max}
}

// Increment records one model call and returns a *StepLimitError once the
// call would exceed the budget. The rejected call is not counted.
func (sl *StepLimiter) Increment() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.count >= sl.max {
		return &StepLimitError{Limit: sl.max}
	}
	sl.count++

	return nil
}

// Count returns the number of model calls made so far.
func (sl *StepLimiter) Count() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.count
}

// Remaining returns how many calls are left before hitting the limit.
func (sl *StepLimiter) Remaining() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	return sl.max - sl.count
}

// Max returns the configured budget.
func (sl *StepLimiter) Max() int { return sl.max }
