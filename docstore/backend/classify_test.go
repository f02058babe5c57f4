package backend_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/types"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"TooManyRequests", backend.NewError(backend.StatusTooManyRequests, nil), true},
		{"Timeout", backend.NewError(backend.StatusTimeout, nil), true},
		{"NotFound", backend.NewError(backend.StatusNotFound, nil), false},
		{"Conflict", backend.NewError(backend.StatusConflict, nil), false},
		{"PreconditionFailed", backend.NewError(backend.StatusPreconditionFailed, nil), false},
		{"TooLarge", backend.NewError(backend.StatusTooLarge, nil), false},
		{"Unknown", backend.NewError(backend.StatusUnknown, errors.New("boom")), false},
		{"PlainError", errors.New("not a backend error"), false},
		{"Cancelled", context.Canceled, false},
		{"Wrapped", fmt.Errorf("op: %w", backend.NewError(backend.StatusTimeout, nil)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backend.ShouldRetry(tt.err); got != tt.want {
				t.Errorf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestShouldContinue(t *testing.T) {
	stale := backend.NewError(backend.StatusPreconditionFailed, nil)

	t.Run("PreconditionRetryableOnlyWhenAllowed", func(t *testing.T) {
		if backend.ShouldContinue(stale, false) {
			t.Error("etag mismatch must not be retryable by default")
		}
		if !backend.ShouldContinue(stale, true) {
			t.Error("etag mismatch must be retryable for read-transform-write")
		}
	})

	t.Run("ThrottleRetryableEitherWay", func(t *testing.T) {
		busy := backend.NewError(backend.StatusTooManyRequests, nil)
		if !backend.ShouldContinue(busy, false) || !backend.ShouldContinue(busy, true) {
			t.Error("throttling must always be retryable")
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code backend.StatusCode
		want error
	}{
		{"NotFound", backend.StatusNotFound, types.ErrNotFound},
		{"Conflict", backend.StatusConflict, types.ErrConflict},
		{"PreconditionFailed", backend.StatusPreconditionFailed, types.ErrOutOfDate},
		{"TooLarge", backend.StatusTooLarge, types.ErrTooLarge},
		{"TooManyRequests", backend.StatusTooManyRequests, types.ErrTemporarilyBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := backend.NewError(tt.code, errors.New("native"))
			out := backend.Classify(in)
			if !errors.Is(out, tt.want) {
				t.Errorf("Classify(%s) = %v, want it to match %v", tt.code, out, tt.want)
			}
			// The original backend error stays reachable for callers that
			// need the raw code.
			if code, ok := backend.CodeOf(out); !ok || code != tt.code {
				t.Errorf("classified error lost its status code, got %v/%v", code, ok)
			}
		})
	}

	t.Run("NilPassesThrough", func(t *testing.T) {
		if err := backend.Classify(nil); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("ForeignErrorsPassThrough", func(t *testing.T) {
		plain := errors.New("dial tcp: refused")
		if err := backend.Classify(plain); err != plain {
			t.Errorf("expected identical error back, got %v", err)
		}
		if err := backend.Classify(context.Canceled); !errors.Is(err, context.Canceled) {
			t.Errorf("cancellation must pass through, got %v", err)
		}
	})

	t.Run("TooLargeKeepsSizeDetail", func(t *testing.T) {
		in := backend.NewError(backend.StatusTooLarge, &types.TooLargeError{Size: 3 << 20, Limit: 2 << 20})
		out := backend.Classify(in)
		var tooLarge *types.TooLargeError
		if !errors.As(out, &tooLarge) {
			t.Fatalf("expected TooLargeError in chain, got %v", out)
		}
		if tooLarge.Size != 3<<20 || tooLarge.Limit != 2<<20 {
			t.Errorf("size detail lost: %+v", tooLarge)
		}
		if !errors.Is(out, types.ErrTooLarge) {
			t.Errorf("expected ErrTooLarge match, got %v", out)
		}
	})
}

func TestRetryAfterHint(t *testing.T) {
	err := &backend.Error{Code: backend.StatusTooManyRequests, After: 250 * time.Millisecond}
	var hinter interface{ RetryAfter() time.Duration }
	if !errors.As(fmt.Errorf("wrapped: %w", err), &hinter) {
		t.Fatal("expected the hint to survive wrapping")
	}
	if hinter.RetryAfter() != 250*time.Millisecond {
		t.Errorf("expected 250ms hint, got %v", hinter.RetryAfter())
	}
}

func TestIsNotFound(t *testing.T) {
	if !backend.IsNotFound(backend.NewError(backend.StatusNotFound, nil)) {
		t.Error("expected true for a not-found backend error")
	}
	if backend.IsNotFound(errors.New("missing")) {
		t.Error("expected false for a plain error")
	}
}
