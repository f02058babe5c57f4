// Package audit provides write-only audit logging layered on the storage
// abstractions: entries append to a document collection, an MQTT topic, or
// a lock-guarded local file.
package audit

import (
	"context"
	"time"
)

// Entry is one audit record.
type Entry struct {
	// Time of the audited action; Write fills it in when zero.
	Time time.Time `json:"time" yaml:"time"`

	// Actor performed the action.
	Actor string `json:"actor" yaml:"actor"`

	// Action names what happened.
	Action string `json:"action" yaml:"action"`

	// Resource identifies what was acted on.
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`

	// Detail carries free-form context.
	Detail map[string]any `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Log is the append-only audit interface.
type Log interface {
	// Write appends one entry.
	Write(ctx context.Context, entry Entry) error

	// Close releases the sink.
	Close() error
}
