package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/internal/validation"
	"go.uber.org/zap"
)

// Database is a named container of collections. Collection handles are
// cached per Database with atomic get-or-create, so unrelated opens never
// serialize against each other.
type Database struct {
	server *Server
	id     string

	colls sync.Map // collection id -> *collHandle
}

type collHandle struct {
	once sync.Once
	coll *Collection
	err  error
}

// ID returns the database id.
func (d *Database) ID() string { return d.id }

// OpenCollection returns the collection handle for id, creating the
// backend collection on first open. partitioned declares the collection as
// physically partitioned by the backend; it only matters on the first open
// in this process. An empty id selects DefaultID.
func (d *Database) OpenCollection(ctx context.Context, id string, partitioned bool) (*Collection, error) {
	if id == "" {
		id = DefaultID
	}
	if err := validation.ValidateID("collection", id); err != nil {
		return nil, err
	}
	entry, _ := d.colls.LoadOrStore(id, &collHandle{})
	handle := entry.(*collHandle)
	handle.once.Do(func() {
		path := backend.Path{Database: d.id, Collection: id}
		_, err := doRemote(ctx, d.server, "open_collection", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, d.server.be.CreateCollection(ctx, path, partitioned)
		})
		if err != nil {
			handle.err = fmt.Errorf("open collection %q: %w", id, err)
			return
		}
		d.server.logger.Debug("collection opened",
			zap.String("database", d.id),
			zap.String("collection", id),
			zap.Bool("partitioned", partitioned))
		handle.coll = &Collection{server: d.server, path: path, partitioned: partitioned}
	})
	if handle.err != nil {
		d.colls.CompareAndDelete(id, entry)
		return nil, handle.err
	}
	return handle.coll, nil
}

// ListCollections drains the backend's paged listing into one sequence.
func (d *Database) ListCollections(ctx context.Context) ([]string, error) {
	var all []string
	continuation := ""
	for {
		type pageResult struct {
			ids  []string
			next string
		}
		result, err := doRemote(ctx, d.server, "list_collections", func(ctx context.Context) (pageResult, error) {
			ids, next, err := d.server.be.ListCollections(ctx, d.id, continuation)
			return pageResult{ids: ids, next: next}, err
		})
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		all = append(all, result.ids...)
		if result.next == "" {
			return all, nil
		}
		continuation = result.next
	}
}

// DeleteCollection removes the backend collection and evicts the cached
// handle; a subsequent open re-creates it.
func (d *Database) DeleteCollection(ctx context.Context, id string) error {
	if id == "" {
		id = DefaultID
	}
	path := backend.Path{Database: d.id, Collection: id}
	_, err := doRemote(ctx, d.server, "delete_collection", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.server.be.DeleteCollection(ctx, path)
	})
	if err != nil {
		return fmt.Errorf("delete collection %q: %w", id, err)
	}
	d.colls.Delete(id)
	return nil
}
