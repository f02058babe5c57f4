package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arthur-debert/docstore/types"
)

// UpdateDocument is the opt-in read-transform-write loop: read the current
// value, apply transform, write back conditioned on the etag just read,
// and start over whenever the write loses an etag race. It loops until the
// write lands, the context is cancelled, or a non-concurrency failure
// surfaces. Two racing callers both converge: one wins each round, the
// final stored value is exactly one transform's output, never a merge.
//
// transform receives the current value and whether the document exists; it
// may be invoked any number of times and must be side-effect free.
func UpdateDocument(ctx context.Context, c types.Collection, id, partitionKey string, transform func(value json.RawMessage, exists bool) (json.RawMessage, error)) (types.RawDocument, error) {
	for {
		if err := ctx.Err(); err != nil {
			return types.RawDocument{}, err
		}
		current, exists, err := c.Get(ctx, id, partitionKey)
		if err != nil {
			return types.RawDocument{}, err
		}
		var base json.RawMessage
		if exists {
			base = current.Value
		}
		next, err := transform(base, exists)
		if err != nil {
			return types.RawDocument{}, fmt.Errorf("transform %q: %w", id, err)
		}

		var result types.RawDocument
		if exists {
			result, err = c.Replace(ctx, current, next)
		} else {
			result, err = c.Add(ctx, types.RawDocument{
				ID:           id,
				PartitionKey: partitionKey,
				Value:        next,
			})
		}
		if err == nil {
			return result, nil
		}
		// A lost race shows up as OutOfDate (replace), NotFound (document
		// deleted between read and write), or Conflict (document created
		// between read and add). All three mean: re-read and go again.
		if errors.Is(err, types.ErrOutOfDate) || errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrConflict) {
			continue
		}
		return types.RawDocument{}, err
	}
}
