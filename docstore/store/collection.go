package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/metrics"
	"github.com/arthur-debert/docstore/types"
	"github.com/google/uuid"
)

// Collection adapts one remote collection to types.Collection. Handles are
// safe for concurrent use; consistency relies entirely on the backend's
// etag mechanism.
type Collection struct {
	server      *Server
	path        backend.Path
	partitioned bool
}

// Path returns the backend path of this collection.
func (c *Collection) Path() backend.Path { return c.path }

// Add implements types.Collection.
func (c *Collection) Add(ctx context.Context, doc types.RawDocument) (types.RawDocument, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Etag = ""
	result, err := doRemote(ctx, c.server, "add", func(ctx context.Context) (types.RawDocument, error) {
		return c.server.be.CreateDocument(ctx, c.path, doc)
	})
	if err != nil {
		return types.RawDocument{}, err
	}
	metrics.DocumentsWritten.WithLabelValues("add").Inc()
	return result, nil
}

// Get implements types.Collection. The backend's not-found status is
// swallowed here: absence is a normal outcome, not an error.
func (c *Collection) Get(ctx context.Context, id, partitionKey string) (types.RawDocument, bool, error) {
	ref := backend.Ref{Path: c.path, ID: id, PartitionKey: partitionKey}
	result, err := doRemote(ctx, c.server, "get", func(ctx context.Context) (types.RawDocument, error) {
		return c.server.be.ReadDocument(ctx, ref)
	})
	if err != nil {
		if backend.IsNotFound(err) {
			return types.RawDocument{}, false, nil
		}
		return types.RawDocument{}, false, err
	}
	return result, true, nil
}

// Upsert implements types.Collection.
func (c *Collection) Upsert(ctx context.Context, doc types.RawDocument) (types.RawDocument, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	ifMatch := doc.Etag
	doc.Etag = ""
	result, err := doRemote(ctx, c.server, "upsert", func(ctx context.Context) (types.RawDocument, error) {
		return c.server.be.UpsertDocument(ctx, c.path, doc, ifMatch)
	})
	if err != nil {
		return types.RawDocument{}, err
	}
	metrics.DocumentsWritten.WithLabelValues("upsert").Inc()
	return result, nil
}

// Replace implements types.Collection. The etag travels on the existing
// handle; Replace never writes unconditionally.
func (c *Collection) Replace(ctx context.Context, existing types.RawDocument, value []byte) (types.RawDocument, error) {
	if existing.ID == "" {
		return types.RawDocument{}, fmt.Errorf("replace requires an existing document handle with an id")
	}
	doc := types.RawDocument{
		ID:           existing.ID,
		PartitionKey: existing.PartitionKey,
		Value:        json.RawMessage(value),
	}
	result, err := doRemote(ctx, c.server, "replace", func(ctx context.Context) (types.RawDocument, error) {
		return c.server.be.ReplaceDocument(ctx, c.path, doc, existing.Etag)
	})
	if err != nil {
		return types.RawDocument{}, err
	}
	metrics.DocumentsWritten.WithLabelValues("replace").Inc()
	return result, nil
}

// Delete implements types.Collection. Deleting an absent document fails
// with ErrNotFound, matching the in-memory reference store.
func (c *Collection) Delete(ctx context.Context, id, partitionKey, etag string) error {
	ref := backend.Ref{Path: c.path, ID: id, PartitionKey: partitionKey}
	_, err := doRemote(ctx, c.server, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.server.be.DeleteDocument(ctx, ref, etag)
	})
	if err != nil {
		return err
	}
	metrics.DocumentsWritten.WithLabelValues("delete").Inc()
	return nil
}

// Query implements types.Collection. For collections the backend itself
// partitions, the partition key is derived server-side and is not passed
// as an explicit filter; for convention-partitioned collections it is
// forwarded as a hint so the backend can avoid a cross-partition scan.
func (c *Collection) Query(ctx context.Context, q types.Query) (types.Feed[types.RawDocument], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.partitioned {
		q.PartitionKey = ""
	}
	return &queryFeed{coll: c, query: q, more: true}, nil
}

// QueryFunc implements types.Collection. The filter runs client-side over
// a full scan; prefer Query with backend query text for selective reads.
func (c *Collection) QueryFunc(ctx context.Context, filter func(types.RawDocument) bool, pageSize int, partitionKey string) (types.Feed[types.RawDocument], error) {
	feed, err := c.Query(ctx, types.Query{PageSize: pageSize, PartitionKey: partitionKey})
	if err != nil {
		return nil, err
	}
	return &filterFeed{src: feed, filter: filter}, nil
}

// BulkExecutor returns a flush function for the bulk pipeline, passing
// batches straight to the backend's bulk-execute primitive. Retry, shrink,
// and classification of bulk flushes belong to the pipeline, so there is
// no retry wrapping here.
func (c *Collection) BulkExecutor() func(ctx context.Context, ops []backend.Operation) (int, error) {
	return func(ctx context.Context, ops []backend.Operation) (int, error) {
		return c.server.be.ExecuteBulk(ctx, c.path, ops)
	}
}

// Changes implements types.Collection, streaming the backend change feed.
func (c *Collection) Changes(ctx context.Context, pageSize int) (types.Feed[types.Change], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &changeFeed{coll: c, pageSize: pageSize, more: true}, nil
}
