// Package store adapts a remote backend into the docstore collection
// abstraction: CRUD, paged queries, and optimistic concurrency, with every
// remote call independently wrapped by the retry engine and the backend
// classifier deciding retry versus surface.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/retry"
	"github.com/arthur-debert/docstore/internal/validation"
	"go.uber.org/zap"
)

// DefaultID is used when a database or collection id is omitted.
const DefaultID = "default"

// DefaultMaxAttempts caps retries per remote call. Large but finite:
// transient storms are absorbed, a hard outage still surfaces.
const DefaultMaxAttempts = 20

// Server is the database/collection lifecycle manager for one backend.
// Open handles are cached per Server instance; independent Servers in the
// same process never share state.
type Server struct {
	be          backend.Backend
	logger      *zap.Logger
	maxAttempts int
	delay       retry.DelayFunc

	dbs sync.Map // database id -> *dbHandle
}

// dbHandle guards the first open of a database so concurrent opens produce
// exactly one backend-side create.
type dbHandle struct {
	once sync.Once
	db   *Database
	err  error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRetry overrides the retry cap and delay strategy applied to every
// remote call.
func WithRetry(maxAttempts int, delay retry.DelayFunc) Option {
	return func(s *Server) {
		s.maxAttempts = maxAttempts
		s.delay = delay
	}
}

// NewServer wraps a backend. The zero configuration retries up to
// DefaultMaxAttempts with jittered exponential backoff honoring server
// retry-after hints.
func NewServer(be backend.Backend, opts ...Option) *Server {
	s := &Server{
		be:          be,
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		delay:       retry.Exponential(50*time.Millisecond, 5*time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenDatabase returns the database handle for id, creating the backend
// database on first open. Concurrent first opens share one create; the
// cached handle is returned afterwards. An empty id selects DefaultID.
func (s *Server) OpenDatabase(ctx context.Context, id string) (*Database, error) {
	if id == "" {
		id = DefaultID
	}
	if err := validation.ValidateID("database", id); err != nil {
		return nil, err
	}
	entry, _ := s.dbs.LoadOrStore(id, &dbHandle{})
	handle := entry.(*dbHandle)
	handle.once.Do(func() {
		_, err := doRemote(ctx, s, "open_database", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.be.CreateDatabase(ctx, id)
		})
		if err != nil {
			handle.err = fmt.Errorf("open database %q: %w", id, err)
			return
		}
		s.logger.Debug("database opened", zap.String("database", id))
		handle.db = &Database{server: s, id: id}
	})
	if handle.err != nil {
		// Evict the failed handle so a later open can retry the create.
		s.dbs.CompareAndDelete(id, entry)
		return nil, handle.err
	}
	return handle.db, nil
}

// DeleteDatabase removes the backend database and evicts the cached
// handle; a subsequent open re-creates it.
func (s *Server) DeleteDatabase(ctx context.Context, id string) error {
	if id == "" {
		id = DefaultID
	}
	_, err := doRemote(ctx, s, "delete_database", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.be.DeleteDatabase(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete database %q: %w", id, err)
	}
	s.dbs.Delete(id)
	return nil
}
