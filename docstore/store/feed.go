package store

import (
	"context"

	"github.com/arthur-debert/docstore/types"
)

// queryFeed pages through a backend query. Feeds are single-reader by
// contract, so no locking around the continuation state.
type queryFeed struct {
	coll         *Collection
	query        types.Query
	continuation string
	more         bool
}

// HasMore implements types.Feed.
func (f *queryFeed) HasMore() bool { return f.more }

// ReadNext implements types.Feed.
func (f *queryFeed) ReadNext(ctx context.Context) ([]types.RawDocument, error) {
	if !f.more {
		return nil, nil
	}
	type pageResult struct {
		page []types.RawDocument
		next string
	}
	result, err := doRemote(ctx, f.coll.server, "query", func(ctx context.Context) (pageResult, error) {
		page, next, err := f.coll.server.be.QueryDocuments(ctx, f.coll.path, f.query, f.continuation)
		return pageResult{page: page, next: next}, err
	})
	if err != nil {
		return nil, err
	}
	f.continuation = result.next
	f.more = result.next != ""
	return result.page, nil
}

// filterFeed applies a client-side predicate over a source feed. Pages can
// shrink (or empty out entirely) after filtering; the feed is exhausted
// exactly when its source is.
type filterFeed struct {
	src    types.Feed[types.RawDocument]
	filter func(types.RawDocument) bool
}

func (f *filterFeed) HasMore() bool { return f.src.HasMore() }

func (f *filterFeed) ReadNext(ctx context.Context) ([]types.RawDocument, error) {
	page, err := f.src.ReadNext(ctx)
	if err != nil {
		return nil, err
	}
	kept := page[:0:0]
	for _, doc := range page {
		if f.filter(doc) {
			kept = append(kept, doc)
		}
	}
	return kept, nil
}

// changeFeed pages through the backend change feed.
type changeFeed struct {
	coll         *Collection
	pageSize     int
	continuation string
	more         bool
}

func (f *changeFeed) HasMore() bool { return f.more }

func (f *changeFeed) ReadNext(ctx context.Context) ([]types.Change, error) {
	if !f.more {
		return nil, nil
	}
	type pageResult struct {
		page []types.Change
		next string
	}
	result, err := doRemote(ctx, f.coll.server, "changes", func(ctx context.Context) (pageResult, error) {
		page, next, err := f.coll.server.be.ReadChanges(ctx, f.coll.path, f.continuation, f.pageSize)
		return pageResult{page: page, next: next}, err
	})
	if err != nil {
		return nil, err
	}
	f.continuation = result.next
	f.more = result.next != ""
	return result.page, nil
}
