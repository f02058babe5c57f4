package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every store implementation. Callers match with
// errors.Is; implementations wrap these sentinels with context via %w.
var (
	// ErrNotFound: the target document or collection is absent.
	ErrNotFound = errors.New("docstore: not found")

	// ErrConflict: a create collided with an existing id.
	ErrConflict = errors.New("docstore: id already exists")

	// ErrOutOfDate: a conditional write or delete lost an etag race. The
	// caller must re-read and retry its transform.
	ErrOutOfDate = errors.New("docstore: etag mismatch")

	// ErrTooLarge: the serialized document exceeds the store's size
	// ceiling. Never retried.
	ErrTooLarge = errors.New("docstore: document too large")

	// ErrTemporarilyBusy: the backend kept throttling past the retry cap.
	// Callers should back off at a higher level rather than spin.
	ErrTemporarilyBusy = errors.New("docstore: backend temporarily busy")
)

// TooLargeError reports the actual and permitted serialized size of a
// rejected document. It unwraps to ErrTooLarge.
type TooLargeError struct {
	Size  int
	Limit int
}

// Error implements the error interface.
func (e *TooLargeError) Error() string {
	return fmt.Sprintf("docstore: document size %d exceeds limit %d", e.Size, e.Limit)
}

// Unwrap makes errors.Is(err, ErrTooLarge) hold.
func (e *TooLargeError) Unwrap() error { return ErrTooLarge }
