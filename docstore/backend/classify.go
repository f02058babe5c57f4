package backend

import (
	"errors"
	"fmt"

	"github.com/arthur-debert/docstore/types"
)

// ShouldRetry reports whether an operation that failed with err is worth
// repeating without caller intervention: rate limiting and timeouts only.
func ShouldRetry(err error) bool {
	return ShouldContinue(err, false)
}

// ShouldContinue is ShouldRetry with an escape hatch for the
// read-transform-write helper: when allowPreconditionRetry is set, an etag
// mismatch is treated as retryable too (the helper re-reads before every
// attempt, so retrying is meaningful there and nowhere else).
func ShouldContinue(err error, allowPreconditionRetry bool) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case StatusTooManyRequests, StatusTimeout:
		return true
	case StatusPreconditionFailed:
		return allowPreconditionRetry
	default:
		return false
	}
}

// Classify maps a backend error into the shared taxonomy. Non-backend
// errors (including context cancellation) pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	code, ok := CodeOf(err)
	if !ok {
		return err
	}
	switch code {
	case StatusNotFound:
		return fmt.Errorf("%w: %w", types.ErrNotFound, err)
	case StatusConflict:
		return fmt.Errorf("%w: %w", types.ErrConflict, err)
	case StatusPreconditionFailed:
		return fmt.Errorf("%w: %w", types.ErrOutOfDate, err)
	case StatusTooLarge:
		var tooLarge *types.TooLargeError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %w", types.ErrTooLarge, err)
	case StatusTooManyRequests:
		return fmt.Errorf("%w: %w", types.ErrTemporarilyBusy, err)
	default:
		return err
	}
}

// IsNotFound reports whether err is a backend not-found signal. Point
// reads use it to convert absence into a normal outcome.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == StatusNotFound
}
