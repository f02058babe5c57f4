// Package memory provides a deterministic, fully synchronous implementation
// of the storage interfaces. It is the semantic ground truth the remote
// adapter must match, and doubles as the test and local-development store:
// same etag generation, conflict errors, and size limits, no network.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/docstore/types"
	"github.com/google/uuid"
)

// MaxDocumentSize is the serialized-size ceiling for a single document.
const MaxDocumentSize = 2 << 20 // 2 MiB

// DefaultPageSize is used when a query does not bound its pages.
const DefaultPageSize = 100

// Collection is an in-memory types.Collection. A single coarse lock per
// collection serializes all map mutations.
type Collection struct {
	locks *LockManager

	docs  map[string]types.RawDocument
	order []string // insertion order, for deterministic feeds

	changes []types.Change
}

// NewCollection returns an empty in-memory collection.
func NewCollection() *Collection {
	return &Collection{
		locks: NewLockManager(),
		docs:  make(map[string]types.RawDocument),
	}
}

// key namespaces ids by partition key. Ids are unique per partition.
func key(partitionKey, id string) string {
	return partitionKey + "\x00" + id
}

func newEtag() string {
	return uuid.NewString()
}

// checkSize enforces the serialized-size ceiling.
func checkSize(doc types.RawDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}
	if len(raw) > MaxDocumentSize {
		return &types.TooLargeError{Size: len(raw), Limit: MaxDocumentSize}
	}
	return nil
}

// Add implements types.Collection. A missing id is generated; an existing
// id fails with ErrConflict and leaves the stored document unchanged.
func (c *Collection) Add(ctx context.Context, doc types.RawDocument) (types.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return types.RawDocument{}, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if err := checkSize(doc); err != nil {
		return types.RawDocument{}, err
	}
	err := c.locks.Execute(WriteOperation, func() error {
		k := key(doc.PartitionKey, doc.ID)
		if _, exists := c.docs[k]; exists {
			return fmt.Errorf("%w: %q", types.ErrConflict, doc.ID)
		}
		doc.Etag = newEtag()
		c.docs[k] = doc
		c.order = append(c.order, k)
		c.changes = append(c.changes, types.Change{Type: types.ChangeAdd, Document: doc})
		return nil
	})
	if err != nil {
		return types.RawDocument{}, err
	}
	return doc, nil
}

// Get implements types.Collection. Absence is a normal outcome.
func (c *Collection) Get(ctx context.Context, id, partitionKey string) (types.RawDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.RawDocument{}, false, err
	}
	var doc types.RawDocument
	var ok bool
	_ = c.locks.Execute(ReadOperation, func() error {
		doc, ok = c.docs[key(partitionKey, id)]
		return nil
	})
	return doc, ok, nil
}

// Upsert implements types.Collection. A non-empty etag on doc makes the
// write conditional.
func (c *Collection) Upsert(ctx context.Context, doc types.RawDocument) (types.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return types.RawDocument{}, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if err := checkSize(doc); err != nil {
		return types.RawDocument{}, err
	}
	err := c.locks.Execute(WriteOperation, func() error {
		k := key(doc.PartitionKey, doc.ID)
		existing, exists := c.docs[k]
		if exists && doc.Etag != "" && doc.Etag != existing.Etag {
			return fmt.Errorf("%w: %q", types.ErrOutOfDate, doc.ID)
		}
		doc.Etag = newEtag()
		c.docs[k] = doc
		if exists {
			c.changes = append(c.changes, types.Change{Type: types.ChangeUpdate, Document: doc})
		} else {
			c.order = append(c.order, k)
			c.changes = append(c.changes, types.Change{Type: types.ChangeAdd, Document: doc})
		}
		return nil
	})
	if err != nil {
		return types.RawDocument{}, err
	}
	return doc, nil
}

// Replace implements types.Collection. The document must already exist and
// existing.Etag, when non-empty, must still match.
func (c *Collection) Replace(ctx context.Context, existing types.RawDocument, value []byte) (types.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return types.RawDocument{}, err
	}
	doc := types.RawDocument{
		ID:           existing.ID,
		PartitionKey: existing.PartitionKey,
		Value:        json.RawMessage(value),
	}
	if err := checkSize(doc); err != nil {
		return types.RawDocument{}, err
	}
	err := c.locks.Execute(WriteOperation, func() error {
		k := key(existing.PartitionKey, existing.ID)
		current, ok := c.docs[k]
		if !ok {
			return fmt.Errorf("%w: %q", types.ErrNotFound, existing.ID)
		}
		if existing.Etag != "" && existing.Etag != current.Etag {
			return fmt.Errorf("%w: %q", types.ErrOutOfDate, existing.ID)
		}
		doc.Etag = newEtag()
		c.docs[k] = doc
		c.changes = append(c.changes, types.Change{Type: types.ChangeUpdate, Document: doc})
		return nil
	})
	if err != nil {
		return types.RawDocument{}, err
	}
	return doc, nil
}

// Delete implements types.Collection. Deleting an absent document fails
// with ErrNotFound; a non-empty etag makes the delete conditional.
func (c *Collection) Delete(ctx context.Context, id, partitionKey, etag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.locks.Execute(WriteOperation, func() error {
		k := key(partitionKey, id)
		current, ok := c.docs[k]
		if !ok {
			return fmt.Errorf("%w: %q", types.ErrNotFound, id)
		}
		if etag != "" && etag != current.Etag {
			return fmt.Errorf("%w: %q", types.ErrOutOfDate, id)
		}
		delete(c.docs, k)
		for i, existing := range c.order {
			if existing == k {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		c.changes = append(c.changes, types.Change{Type: types.ChangeDelete, Document: current})
		return nil
	})
}

// Query implements types.Collection. The in-memory store has no query
// language; only the empty query text (select everything, optionally
// partition-scoped) is supported. Use QueryFunc for filtered reads.
func (c *Collection) Query(ctx context.Context, q types.Query) (types.Feed[types.RawDocument], error) {
	if q.Text != "" {
		return nil, fmt.Errorf("in-memory store does not support raw query text")
	}
	filter := func(types.RawDocument) bool { return true }
	return c.QueryFunc(ctx, filter, q.PageSize, q.PartitionKey)
}

// QueryFunc implements types.Collection. Results are materialized under the
// read lock in insertion order and re-chunked into pages.
func (c *Collection) QueryFunc(ctx context.Context, filter func(types.RawDocument) bool, pageSize int, partitionKey string) (types.Feed[types.RawDocument], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var results []types.RawDocument
	_ = c.locks.Execute(ReadOperation, func() error {
		for _, k := range c.order {
			doc := c.docs[k]
			if partitionKey != "" && doc.PartitionKey != partitionKey {
				continue
			}
			if filter(doc) {
				results = append(results, doc)
			}
		}
		return nil
	})
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return types.NewSliceFeed(results, pageSize), nil
}

// Changes implements types.Collection, replaying the mutation log in the
// order the mutations were applied.
func (c *Collection) Changes(ctx context.Context, pageSize int) (types.Feed[types.Change], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var snapshot []types.Change
	_ = c.locks.Execute(ReadOperation, func() error {
		snapshot = append(snapshot, c.changes...)
		return nil
	})
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return types.NewSliceFeed(snapshot, pageSize), nil
}

// Len reports the number of stored documents. Intended for tests.
func (c *Collection) Len() int {
	n := 0
	_ = c.locks.Execute(ReadOperation, func() error {
		n = len(c.docs)
		return nil
	})
	return n
}
