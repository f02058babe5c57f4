package store_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/memory"
	"github.com/arthur-debert/docstore/types"
)

// fakeBackend implements backend.Backend over in-memory collections, with
// per-operation fault injection and call counting. Faults queued for an
// operation are returned, one per call, before the real behavior runs.
type fakeBackend struct {
	mu     sync.Mutex
	dbs    map[string]bool
	colls  map[backend.Path]*memory.Collection
	faults map[string][]*backend.Error
	calls  map[string]int

	lastQuery types.Query
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		dbs:    make(map[string]bool),
		colls:  make(map[backend.Path]*memory.Collection),
		faults: make(map[string][]*backend.Error),
		calls:  make(map[string]int),
	}
}

// failNext queues an injected error for op's next call.
func (f *fakeBackend) failNext(op string, err *backend.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = append(f.faults[op], err)
}

func (f *fakeBackend) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// enter counts the call and pops an injected fault, if any.
func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if queue := f.faults[op]; len(queue) > 0 {
		err := queue[0]
		f.faults[op] = queue[1:]
		return err
	}
	return nil
}

// wrapStoreErr folds the in-memory store's taxonomy back into backend
// status codes, the shape a real adapter would produce.
func wrapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrNotFound):
		return backend.NewError(backend.StatusNotFound, err)
	case errors.Is(err, types.ErrConflict):
		return backend.NewError(backend.StatusConflict, err)
	case errors.Is(err, types.ErrOutOfDate):
		return backend.NewError(backend.StatusPreconditionFailed, err)
	case errors.Is(err, types.ErrTooLarge):
		return backend.NewError(backend.StatusTooLarge, err)
	default:
		return err
	}
}

func (f *fakeBackend) collection(path backend.Path) (*memory.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll, ok := f.colls[path]
	if !ok {
		return nil, backend.NewError(backend.StatusNotFound, errors.New("no such collection"))
	}
	return coll, nil
}

func (f *fakeBackend) CreateDatabase(ctx context.Context, database string) error {
	if err := f.enter("create_database"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dbs[database] = true
	return nil
}

func (f *fakeBackend) DeleteDatabase(ctx context.Context, database string) error {
	if err := f.enter("delete_database"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.dbs, database)
	for path := range f.colls {
		if path.Database == database {
			delete(f.colls, path)
		}
	}
	return nil
}

func (f *fakeBackend) CreateCollection(ctx context.Context, path backend.Path, partitioned bool) error {
	if err := f.enter("create_collection"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.colls[path]; !ok {
		f.colls[path] = memory.NewCollection()
	}
	return nil
}

func (f *fakeBackend) DeleteCollection(ctx context.Context, path backend.Path) error {
	if err := f.enter("delete_collection"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.colls, path)
	return nil
}

// ListCollections pages one id at a time to exercise continuation draining.
func (f *fakeBackend) ListCollections(ctx context.Context, database, continuation string) ([]string, string, error) {
	if err := f.enter("list_collections"); err != nil {
		return nil, "", err
	}
	f.mu.Lock()
	var ids []string
	for path := range f.colls {
		if path.Database == database {
			ids = append(ids, path.Collection)
		}
	}
	f.mu.Unlock()
	sort.Strings(ids)

	offset := 0
	if continuation != "" {
		offset, _ = strconv.Atoi(continuation)
	}
	if offset >= len(ids) {
		return nil, "", nil
	}
	next := ""
	if offset+1 < len(ids) {
		next = strconv.Itoa(offset + 1)
	}
	return ids[offset : offset+1], next, nil
}

func (f *fakeBackend) ReadDocument(ctx context.Context, ref backend.Ref) (types.RawDocument, error) {
	if err := f.enter("read"); err != nil {
		return types.RawDocument{}, err
	}
	coll, err := f.collection(ref.Path)
	if err != nil {
		return types.RawDocument{}, err
	}
	doc, ok, err := coll.Get(ctx, ref.ID, ref.PartitionKey)
	if err != nil {
		return types.RawDocument{}, err
	}
	if !ok {
		return types.RawDocument{}, backend.NewError(backend.StatusNotFound, nil)
	}
	return doc, nil
}

func (f *fakeBackend) CreateDocument(ctx context.Context, path backend.Path, doc types.RawDocument) (types.RawDocument, error) {
	if err := f.enter("create"); err != nil {
		return types.RawDocument{}, err
	}
	coll, err := f.collection(path)
	if err != nil {
		return types.RawDocument{}, err
	}
	stored, err := coll.Add(ctx, doc)
	return stored, wrapStoreErr(err)
}

func (f *fakeBackend) UpsertDocument(ctx context.Context, path backend.Path, doc types.RawDocument, ifMatch string) (types.RawDocument, error) {
	if err := f.enter("upsert"); err != nil {
		return types.RawDocument{}, err
	}
	coll, err := f.collection(path)
	if err != nil {
		return types.RawDocument{}, err
	}
	doc.Etag = ifMatch
	stored, err := coll.Upsert(ctx, doc)
	return stored, wrapStoreErr(err)
}

func (f *fakeBackend) ReplaceDocument(ctx context.Context, path backend.Path, doc types.RawDocument, ifMatch string) (types.RawDocument, error) {
	if err := f.enter("replace"); err != nil {
		return types.RawDocument{}, err
	}
	coll, err := f.collection(path)
	if err != nil {
		return types.RawDocument{}, err
	}
	existing := types.RawDocument{ID: doc.ID, PartitionKey: doc.PartitionKey, Etag: ifMatch}
	stored, err := coll.Replace(ctx, existing, doc.Value)
	return stored, wrapStoreErr(err)
}

func (f *fakeBackend) DeleteDocument(ctx context.Context, ref backend.Ref, ifMatch string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	coll, err := f.collection(ref.Path)
	if err != nil {
		return err
	}
	return wrapStoreErr(coll.Delete(ctx, ref.ID, ref.PartitionKey, ifMatch))
}

func (f *fakeBackend) QueryDocuments(ctx context.Context, path backend.Path, q types.Query, continuation string) ([]types.RawDocument, string, error) {
	if err := f.enter("query"); err != nil {
		return nil, "", err
	}
	f.mu.Lock()
	f.lastQuery = q
	f.mu.Unlock()
	coll, err := f.collection(path)
	if err != nil {
		return nil, "", err
	}
	feed, err := coll.QueryFunc(ctx, func(types.RawDocument) bool { return true }, 0, q.PartitionKey)
	if err != nil {
		return nil, "", err
	}
	all, err := types.Drain(ctx, feed)
	if err != nil {
		return nil, "", err
	}
	return pageOf(all, q.PageSize, continuation)
}

func (f *fakeBackend) ReadChanges(ctx context.Context, path backend.Path, continuation string, pageSize int) ([]types.Change, string, error) {
	if err := f.enter("changes"); err != nil {
		return nil, "", err
	}
	coll, err := f.collection(path)
	if err != nil {
		return nil, "", err
	}
	feed, err := coll.Changes(ctx, 0)
	if err != nil {
		return nil, "", err
	}
	all, err := types.Drain(ctx, feed)
	if err != nil {
		return nil, "", err
	}
	return pageOf(all, pageSize, continuation)
}

func (f *fakeBackend) ExecuteBulk(ctx context.Context, path backend.Path, ops []backend.Operation) (int, error) {
	if err := f.enter("bulk"); err != nil {
		return 0, err
	}
	coll, err := f.collection(path)
	if err != nil {
		return 0, err
	}
	for i, op := range ops {
		switch op.Kind {
		case backend.OpUpsert:
			if _, err := coll.Upsert(ctx, op.Document); err != nil {
				return i, wrapStoreErr(err)
			}
		case backend.OpDelete:
			err := coll.Delete(ctx, op.Document.ID, op.Document.PartitionKey, "")
			if err != nil && !errors.Is(err, types.ErrNotFound) {
				return i, wrapStoreErr(err)
			}
		}
	}
	return len(ops), nil
}

// pageOf slices an offset-continuation page out of a materialized result.
func pageOf[T any](all []T, pageSize int, continuation string) ([]T, string, error) {
	offset := 0
	if continuation != "" {
		offset, _ = strconv.Atoi(continuation)
	}
	if offset >= len(all) {
		return nil, "", nil
	}
	end := len(all)
	if pageSize > 0 && offset+pageSize < end {
		end = offset + pageSize
	}
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	}
	return all[offset:end], next, nil
}
