package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/docstore/types"
)

// Typed is a typed view over any types.Collection. Values are serialized
// exactly once at this boundary; the wrapped collection only ever sees the
// raw envelope.
type Typed[T any] struct {
	coll types.Collection
}

// NewTyped wraps a collection in a typed view.
func NewTyped[T any](coll types.Collection) *Typed[T] {
	return &Typed[T]{coll: coll}
}

// Collection returns the underlying raw collection.
func (t *Typed[T]) Collection() types.Collection { return t.coll }

func encode[T any](doc types.Document[T]) (types.RawDocument, error) {
	raw, err := json.Marshal(doc.Value)
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("encode document %q: %w", doc.ID, err)
	}
	return types.RawDocument{
		ID:           doc.ID,
		PartitionKey: doc.PartitionKey,
		Etag:         doc.Etag,
		Value:        raw,
	}, nil
}

func decode[T any](raw types.RawDocument) (types.Document[T], error) {
	doc := types.Document[T]{
		ID:           raw.ID,
		PartitionKey: raw.PartitionKey,
		Etag:         raw.Etag,
	}
	if len(raw.Value) > 0 {
		if err := json.Unmarshal(raw.Value, &doc.Value); err != nil {
			return types.Document[T]{}, fmt.Errorf("decode document %q: %w", raw.ID, err)
		}
	}
	return doc, nil
}

// Add creates a new document.
func (t *Typed[T]) Add(ctx context.Context, doc types.Document[T]) (types.Document[T], error) {
	raw, err := encode(doc)
	if err != nil {
		return types.Document[T]{}, err
	}
	result, err := t.coll.Add(ctx, raw)
	if err != nil {
		return types.Document[T]{}, err
	}
	return decode[T](result)
}

// Get is a point read; absence returns ok=false, not an error.
func (t *Typed[T]) Get(ctx context.Context, id, partitionKey string) (types.Document[T], bool, error) {
	raw, ok, err := t.coll.Get(ctx, id, partitionKey)
	if err != nil || !ok {
		return types.Document[T]{}, ok, err
	}
	doc, err := decode[T](raw)
	if err != nil {
		return types.Document[T]{}, false, err
	}
	return doc, true, nil
}

// Upsert inserts or overwrites; a non-empty doc.Etag makes it conditional.
func (t *Typed[T]) Upsert(ctx context.Context, doc types.Document[T]) (types.Document[T], error) {
	raw, err := encode(doc)
	if err != nil {
		return types.Document[T]{}, err
	}
	result, err := t.coll.Upsert(ctx, raw)
	if err != nil {
		return types.Document[T]{}, err
	}
	return decode[T](result)
}

// Replace overwrites an existing document under its etag.
func (t *Typed[T]) Replace(ctx context.Context, existing types.Document[T], value T) (types.Document[T], error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return types.Document[T]{}, fmt.Errorf("encode document %q: %w", existing.ID, err)
	}
	handle := types.RawDocument{
		ID:           existing.ID,
		PartitionKey: existing.PartitionKey,
		Etag:         existing.Etag,
	}
	result, err := t.coll.Replace(ctx, handle, raw)
	if err != nil {
		return types.Document[T]{}, err
	}
	return decode[T](result)
}

// Delete removes a document, conditionally when etag is non-empty.
func (t *Typed[T]) Delete(ctx context.Context, id, partitionKey, etag string) error {
	return t.coll.Delete(ctx, id, partitionKey, etag)
}

// Query runs a raw backend query and decodes every result.
func (t *Typed[T]) Query(ctx context.Context, q types.Query) (types.Feed[types.Document[T]], error) {
	feed, err := t.coll.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return types.MapFeed(feed, decode[T]), nil
}

// Select returns documents whose decoded value satisfies filter.
// Documents that fail to decode as T are skipped.
func (t *Typed[T]) Select(ctx context.Context, filter func(types.Document[T]) bool, pageSize int, partitionKey string) (types.Feed[types.Document[T]], error) {
	rawFilter := func(raw types.RawDocument) bool {
		doc, err := decode[T](raw)
		if err != nil {
			return false
		}
		return filter(doc)
	}
	feed, err := t.coll.QueryFunc(ctx, rawFilter, pageSize, partitionKey)
	if err != nil {
		return nil, err
	}
	return types.MapFeed(feed, decode[T]), nil
}

// Update runs the read-transform-write loop with a typed transform.
func (t *Typed[T]) Update(ctx context.Context, id, partitionKey string, transform func(value T, exists bool) (T, error)) (types.Document[T], error) {
	raw, err := UpdateDocument(ctx, t.coll, id, partitionKey, func(value json.RawMessage, exists bool) (json.RawMessage, error) {
		var current T
		if exists && len(value) > 0 {
			if err := json.Unmarshal(value, &current); err != nil {
				return nil, err
			}
		}
		next, err := transform(current, exists)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
	if err != nil {
		return types.Document[T]{}, err
	}
	return decode[T](raw)
}
