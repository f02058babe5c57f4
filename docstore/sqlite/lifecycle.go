package sqlite

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arthur-debert/docstore/docstore/backend"
)

const listPageSize = 50

// CreateDatabase implements backend.Backend; create-if-absent.
func (b *Backend) CreateDatabase(ctx context.Context, database string) error {
	_, err := b.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO databases (name) VALUES (?)", database)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	return nil
}

// DeleteDatabase implements backend.Backend, removing the database and all
// its collections and documents.
func (b *Backend) DeleteDatabase(ctx context.Context, database string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()
	result, err := tx.ExecContext(ctx, "DELETE FROM databases WHERE name = ?", database)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return backend.NewError(backend.StatusNotFound, fmt.Errorf("database %q", database))
	}
	for _, stmt := range []string{
		"DELETE FROM collections WHERE database = ?",
		"DELETE FROM documents WHERE database = ?",
		"DELETE FROM changes WHERE database = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, database); err != nil {
			return backend.NewError(backend.StatusUnknown, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	return nil
}

// CreateCollection implements backend.Backend; create-if-absent.
func (b *Backend) CreateCollection(ctx context.Context, path backend.Path, partitioned bool) error {
	flag := 0
	if partitioned {
		flag = 1
	}
	_, err := b.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (database, name, partitioned) VALUES (?, ?, ?)",
		path.Database, path.Collection, flag)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	return nil
}

// DeleteCollection implements backend.Backend.
func (b *Backend) DeleteCollection(ctx context.Context, path backend.Path) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()
	result, err := tx.ExecContext(ctx,
		"DELETE FROM collections WHERE database = ? AND name = ?",
		path.Database, path.Collection)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return backend.NewError(backend.StatusNotFound, fmt.Errorf("collection %q", path.Collection))
	}
	for _, stmt := range []string{
		"DELETE FROM documents WHERE database = ? AND collection = ?",
		"DELETE FROM changes WHERE database = ? AND collection = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, path.Database, path.Collection); err != nil {
			return backend.NewError(backend.StatusUnknown, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	return nil
}

// ListCollections implements backend.Backend with an offset-based
// continuation token.
func (b *Backend) ListCollections(ctx context.Context, database, continuation string) ([]string, string, error) {
	offset := 0
	if continuation != "" {
		parsed, err := strconv.Atoi(continuation)
		if err != nil {
			return nil, "", backend.NewError(backend.StatusUnknown,
				fmt.Errorf("bad continuation token %q: %w", continuation, err))
		}
		offset = parsed
	}
	rows, err := b.db.QueryContext(ctx,
		"SELECT name FROM collections WHERE database = ? ORDER BY name LIMIT ? OFFSET ?",
		database, listPageSize, offset)
	if err != nil {
		return nil, "", backend.NewError(backend.StatusUnknown, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, "", backend.NewError(backend.StatusUnknown, err)
		}
		ids = append(ids, name)
	}
	if err := rows.Err(); err != nil {
		return nil, "", backend.NewError(backend.StatusUnknown, err)
	}
	next := ""
	if len(ids) == listPageSize {
		next = strconv.Itoa(offset + listPageSize)
	}
	return ids, next, nil
}
