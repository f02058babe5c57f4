// Package retry provides the generic retry-with-backoff driver used by
// every remote operation in docstore. It is parameterized by a "should
// retry" predicate and a "next delay" function so that status-code policy
// stays in one place (the backend classifier) instead of being duplicated
// per call site.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ShouldRetryFunc reports whether the failed attempt is worth repeating.
type ShouldRetryFunc func(err error) bool

// DelayFunc returns how long to wait before attempt+1. attempt counts the
// failures so far, starting at 1.
type DelayFunc func(attempt int, err error) time.Duration

// AfterHinter is implemented by errors that carry a server-provided
// "retry after" duration. Delay strategies honor the hint when present.
type AfterHinter interface {
	RetryAfter() time.Duration
}

// Do invokes action until it succeeds, shouldRetry rejects the error, or
// maxAttempts attempts have failed. The last error is returned unchanged.
// Cancellation aborts any pending delay immediately and propagates the
// context error; a cancelled attempt is never retried.
func Do[T any](ctx context.Context, maxAttempts int, action func(context.Context) (T, error), shouldRetry ShouldRetryFunc, nextDelay DelayFunc) (T, error) {
	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var result T
		result, err = action(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if !shouldRetry(err) || attempt >= maxAttempts {
			return zero, err
		}
		if delay := nextDelay(attempt, err); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
	}
}

// Linear waits attempt*base per retry, unless the error carries a server
// retry-after hint, which takes precedence.
func Linear(base time.Duration) DelayFunc {
	return func(attempt int, err error) time.Duration {
		var hinter AfterHinter
		if errors.As(err, &hinter) {
			if after := hinter.RetryAfter(); after > 0 {
				return after
			}
		}
		return time.Duration(attempt) * base
	}
}

// Exponential waits a random number of slot durations in [0, 2^attempt),
// capped at maximum. The jitter keeps concurrent retriers from
// synchronizing against an overloaded backend. A retry-after hint on the
// error takes precedence over the computed backoff.
func Exponential(slot, maximum time.Duration) DelayFunc {
	return func(attempt int, err error) time.Duration {
		var hinter AfterHinter
		if errors.As(err, &hinter) {
			if after := hinter.RetryAfter(); after > 0 {
				if after > maximum {
					return maximum
				}
				return after
			}
		}
		return backoffTime(attempt, slot, maximum)
	}
}

// NoDelay retries immediately. Used by the in-memory store and by tests.
func NoDelay() DelayFunc {
	return func(int, error) time.Duration { return 0 }
}

// backoffTime computes a jittered exponential backoff. Slot counts that
// would overflow collapse to the maximum.
func backoffTime(attempt int, slot, maximum time.Duration) time.Duration {
	if slot <= 0 || attempt <= 0 {
		return 0
	}
	if attempt >= 63 {
		return maximum
	}
	slots := rand.Int63n(int64(1) << attempt)
	if slots > 0 && slot.Nanoseconds() > (1<<62)/slots {
		return maximum
	}
	backoff := time.Duration(slots) * slot
	if backoff > maximum {
		backoff = maximum
	}
	return backoff
}
