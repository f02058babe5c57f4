// Package docstore exposes a uniform document/graph storage abstraction
// over pluggable backing stores: an in-memory reference store for tests
// and local development, and remote document backends reached through a
// resilient adapter with retry, optimistic concurrency, and adaptive bulk
// batching.
package docstore

import (
	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/memory"
	"github.com/arthur-debert/docstore/docstore/sqlite"
	"github.com/arthur-debert/docstore/docstore/store"
	"github.com/arthur-debert/docstore/types"
)

// Core types, re-exported for callers that only need the public surface.
type (
	// Document is the typed envelope around a stored value.
	Document[T any] = types.Document[T]

	// RawDocument is the wire-level envelope.
	RawDocument = types.RawDocument

	// Collection is the uniform document-storage interface.
	Collection = types.Collection

	// Query describes a paged query.
	Query = types.Query

	// Change is one change-feed record.
	Change = types.Change

	// Server is the lifecycle manager for databases and collections.
	Server = store.Server

	// Database is a named container of collections.
	Database = store.Database
)

// Error taxonomy, matched with errors.Is.
var (
	ErrNotFound        = types.ErrNotFound
	ErrConflict        = types.ErrConflict
	ErrOutOfDate       = types.ErrOutOfDate
	ErrTooLarge        = types.ErrTooLarge
	ErrTemporarilyBusy = types.ErrTemporarilyBusy
)

// NewServer wraps a backend in the lifecycle manager and collection
// adapter.
func NewServer(be backend.Backend, opts ...store.Option) *Server {
	return store.NewServer(be, opts...)
}

// NewMemoryCollection returns an empty in-memory collection, the reference
// implementation of the Collection contract.
func NewMemoryCollection() *memory.Collection {
	return memory.NewCollection()
}

// OpenSQLite opens (or creates) a SQLite-backed backend at path.
func OpenSQLite(path string, opts ...sqlite.Option) (*sqlite.Backend, error) {
	return sqlite.Open(path, opts...)
}

// NewTyped wraps any collection in a typed view; values serialize once at
// this boundary.
func NewTyped[T any](coll types.Collection) *store.Typed[T] {
	return store.NewTyped[T](coll)
}
