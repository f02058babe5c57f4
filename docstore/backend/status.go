package backend

import (
	"errors"
	"fmt"
	"time"
)

// StatusCode is the small taxonomy of backend failure signals. Backends
// fold their native status codes or exceptions into these before the
// classifier ever sees them.
type StatusCode int

const (
	// StatusUnknown covers any non-2xx signal not listed below. Terminal.
	StatusUnknown StatusCode = iota

	// StatusNotFound: the target resource is absent.
	StatusNotFound

	// StatusConflict: a create collided with an existing id.
	StatusConflict

	// StatusPreconditionFailed: an ifMatch etag no longer matches.
	StatusPreconditionFailed

	// StatusTooLarge: the request payload exceeds the backend's ceiling.
	StatusTooLarge

	// StatusTooManyRequests: the backend is rate limiting. Transient.
	StatusTooManyRequests

	// StatusTimeout: the request timed out server-side. Transient.
	StatusTimeout
)

// String returns a short name for logs.
func (c StatusCode) String() string {
	switch c {
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusPreconditionFailed:
		return "precondition_failed"
	case StatusTooLarge:
		return "too_large"
	case StatusTooManyRequests:
		return "too_many_requests"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the uniform failure signal returned by Backend implementations.
type Error struct {
	Code StatusCode

	// After carries a server-provided retry-after hint, when the backend
	// sent one with a throttling response.
	After time.Duration

	// Err is the backend's underlying error, if any.
	Err error
}

// NewError builds a backend error for code wrapping err.
func NewError(code StatusCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("backend %s", e.Code)
}

// Unwrap exposes the underlying backend error.
func (e *Error) Unwrap() error { return e.Err }

// RetryAfter implements retry.AfterHinter.
func (e *Error) RetryAfter() time.Duration { return e.After }

// CodeOf extracts the status code from an error chain. The second return
// is false when the error did not originate from a backend.
func CodeOf(err error) (StatusCode, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Code, true
	}
	return StatusUnknown, false
}
