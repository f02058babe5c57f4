package types

import "context"

// Feed is a stateful, forward-only, paged query cursor. HasMore reports
// whether another page may be available; ReadNext fetches it. A feed is
// single-reader: ReadNext must not be called concurrently with itself on
// the same feed.
type Feed[R any] interface {
	// HasMore is true until the underlying cursor is exhausted.
	HasMore() bool

	// ReadNext fetches the next page. It returns an empty page (never an
	// error) when called on an exhausted feed.
	ReadNext(ctx context.Context) ([]R, error)
}

// SliceFeed re-chunks an already materialized result set into pages of
// pageSize items, for feed compatibility. pageSize <= 0 yields everything
// in a single page.
type SliceFeed[R any] struct {
	items    []R
	pageSize int
}

// NewSliceFeed wraps items in a Feed that serves them pageSize at a time.
func NewSliceFeed[R any](items []R, pageSize int) *SliceFeed[R] {
	return &SliceFeed[R]{items: items, pageSize: pageSize}
}

// HasMore implements Feed.
func (f *SliceFeed[R]) HasMore() bool {
	return len(f.items) > 0
}

// ReadNext implements Feed.
func (f *SliceFeed[R]) ReadNext(ctx context.Context) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.items) == 0 {
		return nil, nil
	}
	n := f.pageSize
	if n <= 0 || n > len(f.items) {
		n = len(f.items)
	}
	page := f.items[:n]
	f.items = f.items[n:]
	return page, nil
}

// MapFeed converts a Feed[A] into a Feed[B] by applying fn to every item.
// Conversion errors end the feed.
func MapFeed[A, B any](src Feed[A], fn func(A) (B, error)) Feed[B] {
	return &mapFeed[A, B]{src: src, fn: fn}
}

type mapFeed[A, B any] struct {
	src Feed[A]
	fn  func(A) (B, error)
}

func (f *mapFeed[A, B]) HasMore() bool { return f.src.HasMore() }

func (f *mapFeed[A, B]) ReadNext(ctx context.Context) ([]B, error) {
	page, err := f.src.ReadNext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]B, 0, len(page))
	for _, item := range page {
		mapped, err := f.fn(item)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

// Drain reads a feed to exhaustion and returns all items.
func Drain[R any](ctx context.Context, feed Feed[R]) ([]R, error) {
	var all []R
	for feed.HasMore() {
		page, err := feed.ReadNext(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}
