// Package retry provides the bounded-retry helper shared by provider API calls.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ExhaustedError reports that every attempt at an action failed. It carries the
// last underlying failure for callers that inspect it with errors.As/Unwrap.
type ExhaustedError struct {
	Action   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to %s after %d attempts: %v", e.Action, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Policy bundles the attempt budget and the base backoff delay. The delay
// doubles after every failed attempt.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Logger    *log.Logger
}

// Do runs fn up to p.Attempts times, sleeping BaseDelay * 2^(attempt-1) between
// attempts. It returns fn's result on the first success and an *ExhaustedError
// naming the action once the budget is spent. Context cancellation between
// attempts aborts the loop with the context error.
func Do[T any](ctx context.Context, p Policy, action string, fn func() (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		last = err
		if attempt == attempts {
			break
		}

		delay := baseDelay << uint(attempt-1)
		if p.Logger != nil {
			p.Logger.Printf("attempt %d/%d to %s failed (%v); retrying in %s", attempt, attempts, action, err, delay)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, &ExhaustedError{Action: action, Attempts: attempts, Last: last}
}
