// Package types defines the core types used throughout the docstore library.
// This package exists to prevent circular dependencies between the public API
// and backend packages while maintaining a single source of truth for all
// type definitions.
package types

import "encoding/json"

// Document is the typed envelope around a stored value. Id, partition key
// and etag are carried explicitly; serialization of Value happens once at
// the collection boundary, never via per-call reflection.
type Document[T any] struct {
	// ID is unique within a (collection, partition key). Generated when the
	// caller leaves it empty.
	ID string `json:"id" yaml:"id"`

	// PartitionKey is set only for partitioned collections.
	PartitionKey string `json:"partitionKey,omitempty" yaml:"partitionKey,omitempty"`

	// Etag is the opaque version token assigned by the store on every
	// successful write. Empty means "no concurrency check" on writes.
	Etag string `json:"etag,omitempty" yaml:"etag,omitempty"`

	// Value is the caller-defined payload.
	Value T `json:"value" yaml:"value"`
}

// RawDocument is the wire-level envelope used by the Collection interface.
// Typed access is layered on top, see store.Typed.
type RawDocument = Document[json.RawMessage]

// Query describes a paged query against a collection.
type Query struct {
	// Text is the backend's native query text. Empty selects everything.
	Text string

	// Parameters are bound into Text by the backend.
	Parameters map[string]any

	// PartitionKey, when non-empty, restricts the query to one logical
	// partition. Collections that are physically partitioned by the backend
	// ignore it (the backend derives the partition server-side).
	PartitionKey string

	// PageSize bounds items per network round trip. Zero requests the
	// backend's default.
	PageSize int
}

// ChangeType tags a change record streamed out of a collection.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeUpdate
	ChangeDelete
)

// String returns the lowercase name of the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeAdd:
		return "add"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is a single mutation streamed from a collection's change feed,
// used for graph sync and bulk-sync consumers. Ordering follows the store's
// native change-feed ordering within one feed; there is no ordering
// guarantee across partitions.
type Change struct {
	Type     ChangeType
	Document RawDocument
}
