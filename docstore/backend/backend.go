// Package backend defines the narrow contract a remote document store must
// expose to docstore, plus the status taxonomy and retry classification
// shared by every adapter code path.
package backend

import (
	"context"

	"github.com/arthur-debert/docstore/types"
)

// Path names a collection inside a database.
type Path struct {
	Database   string
	Collection string
}

// Ref names a single document.
type Ref struct {
	Path
	ID           string
	PartitionKey string
}

// OpKind tags a bulk operation.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpDelete
)

// Operation is one entry in a bulk-execute call.
type Operation struct {
	Kind     OpKind
	Document types.RawDocument
}

// Backend is the primitive surface of a remote document store. Every method
// returns *Error for backend-signaled failures so the classifier can map
// status codes uniformly. Conditional writes take an ifMatch etag; empty
// means unconditional.
//
// Create* calls are create-if-absent: opening an already existing database
// or collection succeeds without error.
type Backend interface {
	CreateDatabase(ctx context.Context, database string) error
	DeleteDatabase(ctx context.Context, database string) error

	CreateCollection(ctx context.Context, path Path, partitioned bool) error
	DeleteCollection(ctx context.Context, path Path) error

	// ListCollections returns one page of collection ids plus the
	// continuation token for the next page; an empty token ends the
	// listing.
	ListCollections(ctx context.Context, database, continuation string) (ids []string, next string, err error)

	ReadDocument(ctx context.Context, ref Ref) (types.RawDocument, error)
	CreateDocument(ctx context.Context, path Path, doc types.RawDocument) (types.RawDocument, error)
	UpsertDocument(ctx context.Context, path Path, doc types.RawDocument, ifMatch string) (types.RawDocument, error)
	ReplaceDocument(ctx context.Context, path Path, doc types.RawDocument, ifMatch string) (types.RawDocument, error)
	DeleteDocument(ctx context.Context, ref Ref, ifMatch string) error

	// QueryDocuments returns one page of results plus a continuation token.
	QueryDocuments(ctx context.Context, path Path, q types.Query, continuation string) (page []types.RawDocument, next string, err error)

	// ReadChanges returns one page of the collection's change feed.
	ReadChanges(ctx context.Context, path Path, continuation string, pageSize int) (page []types.Change, next string, err error)

	// ExecuteBulk applies a batch of operations server-side and reports how
	// many of them were actually processed. Processing fewer than submitted
	// is not an error; the caller resubmits the remainder.
	ExecuteBulk(ctx context.Context, path Path, ops []Operation) (processed int, err error)
}
