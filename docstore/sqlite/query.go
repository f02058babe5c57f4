package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/types"
)

// QueryDocuments implements backend.Backend. Query text is a SQL
// expression over the columns (partition, id, etag, value); parameters
// bind as :name, with names of the form dsXxx reserved for the backend's
// own predicates. JSON fields are reachable with json_extract, for example
// `json_extract(value, '$.kind') = :kind`. The continuation token is an
// offset into the ordered result set.
func (b *Backend) QueryDocuments(ctx context.Context, path backend.Path, q types.Query, continuation string) ([]types.RawDocument, string, error) {
	offset := 0
	if continuation != "" {
		parsed, err := strconv.Atoi(continuation)
		if err != nil {
			return nil, "", backend.NewError(backend.StatusUnknown,
				fmt.Errorf("bad continuation token %q: %w", continuation, err))
		}
		offset = parsed
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	// SQLite parameter names must begin with a letter, so the internal
	// binds use a dsXxx prefix; those names are reserved for the backend.
	var sb strings.Builder
	sb.WriteString(`SELECT partition, id, etag, value FROM documents WHERE database = :dsDatabase AND collection = :dsCollection`)
	args := []any{
		sql.Named("dsDatabase", path.Database),
		sql.Named("dsCollection", path.Collection),
	}
	if q.PartitionKey != "" {
		sb.WriteString(" AND partition = :dsPartition")
		args = append(args, sql.Named("dsPartition", q.PartitionKey))
	}
	if q.Text != "" {
		sb.WriteString(" AND (")
		sb.WriteString(q.Text)
		sb.WriteString(")")
		for name, value := range q.Parameters {
			args = append(args, sql.Named(strings.TrimPrefix(name, ":"), value))
		}
	}
	sb.WriteString(" ORDER BY partition, id LIMIT :dsLimit OFFSET :dsOffset")
	args = append(args,
		sql.Named("dsLimit", pageSize),
		sql.Named("dsOffset", offset))

	rows, err := b.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, "", backend.NewError(backend.StatusUnknown, err)
	}
	defer rows.Close()

	var page []types.RawDocument
	for rows.Next() {
		var partition, id, etag, value string
		if err := rows.Scan(&partition, &id, &etag, &value); err != nil {
			return nil, "", backend.NewError(backend.StatusUnknown, err)
		}
		page = append(page, types.RawDocument{
			ID:           id,
			PartitionKey: partition,
			Etag:         etag,
			Value:        json.RawMessage(value),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, "", backend.NewError(backend.StatusUnknown, err)
	}
	next := ""
	if len(page) == pageSize {
		next = strconv.Itoa(offset + pageSize)
	}
	return page, next, nil
}

// ReadChanges implements backend.Backend. The continuation token is the
// last delivered change sequence number.
func (b *Backend) ReadChanges(ctx context.Context, path backend.Path, continuation string, pageSize int) ([]types.Change, string, error) {
	lastSeq := int64(0)
	if continuation != "" {
		parsed, err := strconv.ParseInt(continuation, 10, 64)
		if err != nil {
			return nil, "", backend.NewError(backend.StatusUnknown,
				fmt.Errorf("bad continuation token %q: %w", continuation, err))
		}
		lastSeq = parsed
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT seq, type, partition, id, etag, value FROM changes
		 WHERE database = ? AND collection = ? AND seq > ?
		 ORDER BY seq LIMIT ?`,
		path.Database, path.Collection, lastSeq, pageSize)
	if err != nil {
		return nil, "", backend.NewError(backend.StatusUnknown, err)
	}
	defer rows.Close()

	var page []types.Change
	for rows.Next() {
		var seq int64
		var kind, partition, id, etag, value string
		if err := rows.Scan(&seq, &kind, &partition, &id, &etag, &value); err != nil {
			return nil, "", backend.NewError(backend.StatusUnknown, err)
		}
		change := types.Change{
			Document: types.RawDocument{
				ID:           id,
				PartitionKey: partition,
				Etag:         etag,
				Value:        json.RawMessage(value),
			},
		}
		switch kind {
		case types.ChangeAdd.String():
			change.Type = types.ChangeAdd
		case types.ChangeUpdate.String():
			change.Type = types.ChangeUpdate
		case types.ChangeDelete.String():
			change.Type = types.ChangeDelete
		}
		page = append(page, change)
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return nil, "", backend.NewError(backend.StatusUnknown, err)
	}
	next := ""
	if len(page) == pageSize {
		next = strconv.FormatInt(lastSeq, 10)
	}
	return page, next, nil
}

// ExecuteBulk implements backend.Backend. Operations apply in order inside
// one transaction, capped at the backend's bulk limit per call; the
// reported count tells the caller where to resume. Bulk upserts are
// unconditional and bulk deletes of absent documents are no-ops, the usual
// semantics for a sync primitive.
func (b *Backend) ExecuteBulk(ctx context.Context, path backend.Path, ops []backend.Operation) (int, error) {
	n := len(ops)
	if n > b.bulkLimit {
		n = b.bulkLimit
	}
	if n == 0 {
		return 0, nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()

	for _, op := range ops[:n] {
		switch op.Kind {
		case backend.OpUpsert:
			if bErr := checkSize(op.Document); bErr != nil {
				return 0, bErr
			}
			doc := op.Document
			doc.Etag = ""
			if _, bErr := upsertDocument(ctx, tx, path, doc, ""); bErr != nil {
				return 0, bErr
			}
		case backend.OpDelete:
			result, err := tx.ExecContext(ctx,
				`DELETE FROM documents
				 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
				path.Database, path.Collection, op.Document.PartitionKey, op.Document.ID)
			if err != nil {
				return 0, backend.NewError(backend.StatusUnknown, err)
			}
			if affected, _ := result.RowsAffected(); affected > 0 {
				deleted := op.Document
				deleted.Value = json.RawMessage("null")
				if bErr := recordChange(ctx, tx, path, types.ChangeDelete, deleted); bErr != nil {
					return 0, bErr
				}
			}
		default:
			return 0, backend.NewError(backend.StatusUnknown,
				fmt.Errorf("unknown bulk operation kind %d", op.Kind))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, backend.NewError(backend.StatusUnknown, err)
	}
	return n, nil
}
