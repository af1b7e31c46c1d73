// Package retry provides backoff policies for transient failures.
//
// The policy is pure: it answers "should attempt N be retried, and after
// what delay" without performing any waiting itself. Callers own the clock,
// which keeps transports testable and lets context cancellation interrupt
// a backoff sleep.
package retry

import (
	"context"
	"time"
)

// Policy describes how failed attempts are retried.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// BaseDelay is the unit delay for exponential backoff.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff. A value of 0 means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used for gateway completion requests:
// three retries with delays of 4s, 8s, and 16s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// NextDelay returns the delay to wait before retrying after a failed
// attempt, and whether a retry is allowed at all. attempt is zero-based:
// attempt 0 is the initial request.
//
// The delay doubles with each attempt starting at 4x the base delay,
// so with a 1s base the sequence is 4s, 8s, 16s.
func (p Policy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= p.MaxRetries {
		return 0, false
	}

	delay := p.BaseDelay * (1 << (attempt + 2))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}

// Sleep waits for the given delay, returning early with the context's
// error if the context is canceled first.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn, retrying per the policy while shouldRetry reports the
// returned error as retryable. It returns the last error when retries are
// exhausted, or the context's error when canceled mid-backoff.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}

		delay, ok := p.NextDelay(attempt)
		if !ok {
			return lastErr
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
