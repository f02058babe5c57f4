package types

import "context"

// Collection is the uniform document-storage abstraction implemented by the
// in-memory reference store and by the remote collection adapter. All
// methods are safe for concurrent use on the same handle; consistency is
// enforced solely through etags, never client-side locking.
type Collection interface {
	// Add creates a new document. A missing doc.ID is generated. Adding an
	// id that already exists fails with ErrConflict and leaves the stored
	// document unchanged.
	Add(ctx context.Context, doc RawDocument) (RawDocument, error)

	// Get is a point read. A missing document is a normal outcome: it
	// returns ok=false and a nil error.
	Get(ctx context.Context, id, partitionKey string) (doc RawDocument, ok bool, err error)

	// Upsert inserts or overwrites. When doc.Etag is non-empty it must match
	// the currently stored etag or the call fails with ErrOutOfDate; when
	// empty the write is unconditional.
	Upsert(ctx context.Context, doc RawDocument) (RawDocument, error)

	// Replace overwrites an existing document, carrying the concurrency
	// check from existing.Etag. It fails with ErrNotFound when the document
	// is absent and ErrOutOfDate when the etag no longer matches.
	Replace(ctx context.Context, existing RawDocument, value []byte) (RawDocument, error)

	// Delete removes a document. A non-empty etag makes the delete
	// conditional. Deleting an absent document fails with ErrNotFound.
	Delete(ctx context.Context, id, partitionKey, etag string) error

	// Query returns a lazy, forward-only, paged feed of matching documents.
	Query(ctx context.Context, q Query) (Feed[RawDocument], error)

	// QueryFunc returns a feed of documents satisfying filter. pageSize
	// bounds items per page; zero requests the store default.
	QueryFunc(ctx context.Context, filter func(RawDocument) bool, pageSize int, partitionKey string) (Feed[RawDocument], error)

	// Changes streams the collection's mutation records in the store's
	// native change-feed order.
	Changes(ctx context.Context, pageSize int) (Feed[Change], error)
}
