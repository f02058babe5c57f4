package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/types"
	"github.com/google/uuid"
)

func newEtag() string {
	return uuid.NewString()
}

// checkSize enforces the per-document ceiling before any write.
func checkSize(doc types.RawDocument) *backend.Error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, fmt.Errorf("serialize document: %w", err))
	}
	if len(raw) > MaxDocumentSize {
		return backend.NewError(backend.StatusTooLarge,
			&types.TooLargeError{Size: len(raw), Limit: MaxDocumentSize})
	}
	return nil
}

// ReadDocument implements backend.Backend.
func (b *Backend) ReadDocument(ctx context.Context, ref backend.Ref) (types.RawDocument, error) {
	var etag, value string
	err := b.db.QueryRowContext(ctx,
		`SELECT etag, value FROM documents
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		ref.Database, ref.Collection, ref.PartitionKey, ref.ID).Scan(&etag, &value)
	if err == sql.ErrNoRows {
		return types.RawDocument{}, backend.NewError(backend.StatusNotFound, fmt.Errorf("document %q", ref.ID))
	}
	if err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	return types.RawDocument{
		ID:           ref.ID,
		PartitionKey: ref.PartitionKey,
		Etag:         etag,
		Value:        json.RawMessage(value),
	}, nil
}

// CreateDocument implements backend.Backend. An existing id signals a
// conflict.
func (b *Backend) CreateDocument(ctx context.Context, path backend.Path, doc types.RawDocument) (types.RawDocument, error) {
	if err := checkSize(doc); err != nil {
		return types.RawDocument{}, err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()
	doc, bErr := insertDocument(ctx, tx, path, doc)
	if bErr != nil {
		return types.RawDocument{}, bErr
	}
	if err := tx.Commit(); err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	return doc, nil
}

// UpsertDocument implements backend.Backend. ifMatch, when non-empty, must
// equal the stored etag; an ifMatch against an absent document is a failed
// precondition too.
func (b *Backend) UpsertDocument(ctx context.Context, path backend.Path, doc types.RawDocument, ifMatch string) (types.RawDocument, error) {
	if err := checkSize(doc); err != nil {
		return types.RawDocument{}, err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()
	doc, bErr := upsertDocument(ctx, tx, path, doc, ifMatch)
	if bErr != nil {
		return types.RawDocument{}, bErr
	}
	if err := tx.Commit(); err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	return doc, nil
}

// ReplaceDocument implements backend.Backend. The document must exist and
// ifMatch, when non-empty, must still match.
func (b *Backend) ReplaceDocument(ctx context.Context, path backend.Path, doc types.RawDocument, ifMatch string) (types.RawDocument, error) {
	if err := checkSize(doc); err != nil {
		return types.RawDocument{}, err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()

	current, bErr := lockDocument(ctx, tx, path, doc.PartitionKey, doc.ID)
	if bErr != nil {
		return types.RawDocument{}, bErr
	}
	if ifMatch != "" && ifMatch != current {
		return types.RawDocument{}, backend.NewError(backend.StatusPreconditionFailed,
			fmt.Errorf("document %q", doc.ID))
	}
	doc.Etag = newEtag()
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET etag = ?, value = ?
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		doc.Etag, string(doc.Value),
		path.Database, path.Collection, doc.PartitionKey, doc.ID); err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	if bErr := recordChange(ctx, tx, path, types.ChangeUpdate, doc); bErr != nil {
		return types.RawDocument{}, bErr
	}
	if err := tx.Commit(); err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	return doc, nil
}

// DeleteDocument implements backend.Backend. Deleting an absent document
// is an error here, consistent with the in-memory reference store.
func (b *Backend) DeleteDocument(ctx context.Context, ref backend.Ref, ifMatch string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	defer tx.Rollback()

	path := ref.Path
	current, bErr := lockDocument(ctx, tx, path, ref.PartitionKey, ref.ID)
	if bErr != nil {
		return bErr
	}
	if ifMatch != "" && ifMatch != current {
		return backend.NewError(backend.StatusPreconditionFailed, fmt.Errorf("document %q", ref.ID))
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		path.Database, path.Collection, ref.PartitionKey, ref.ID); err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	deleted := types.RawDocument{ID: ref.ID, PartitionKey: ref.PartitionKey, Etag: current, Value: json.RawMessage("null")}
	if bErr := recordChange(ctx, tx, path, types.ChangeDelete, deleted); bErr != nil {
		return bErr
	}
	if err := tx.Commit(); err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	return nil
}

// lockDocument reads the current etag inside tx, mapping absence to a
// not-found status.
func lockDocument(ctx context.Context, tx *sql.Tx, path backend.Path, partition, id string) (string, *backend.Error) {
	var etag string
	err := tx.QueryRowContext(ctx,
		`SELECT etag FROM documents
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		path.Database, path.Collection, partition, id).Scan(&etag)
	if err == sql.ErrNoRows {
		return "", backend.NewError(backend.StatusNotFound, fmt.Errorf("document %q", id))
	}
	if err != nil {
		return "", backend.NewError(backend.StatusUnknown, err)
	}
	return etag, nil
}

// insertDocument creates a document inside tx, signaling a conflict when
// the id exists.
func insertDocument(ctx context.Context, tx *sql.Tx, path backend.Path, doc types.RawDocument) (types.RawDocument, *backend.Error) {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM documents
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		path.Database, path.Collection, doc.PartitionKey, doc.ID).Scan(&exists)
	if err == nil {
		return types.RawDocument{}, backend.NewError(backend.StatusConflict, fmt.Errorf("document %q", doc.ID))
	}
	if err != sql.ErrNoRows {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	doc.Etag = newEtag()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (database, collection, partition, id, etag, value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path.Database, path.Collection, doc.PartitionKey, doc.ID, doc.Etag, string(doc.Value)); err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	if bErr := recordChange(ctx, tx, path, types.ChangeAdd, doc); bErr != nil {
		return types.RawDocument{}, bErr
	}
	return doc, nil
}

// upsertDocument inserts or overwrites inside tx, honoring ifMatch.
func upsertDocument(ctx context.Context, tx *sql.Tx, path backend.Path, doc types.RawDocument, ifMatch string) (types.RawDocument, *backend.Error) {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT etag FROM documents
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		path.Database, path.Collection, doc.PartitionKey, doc.ID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if ifMatch != "" {
			return types.RawDocument{}, backend.NewError(backend.StatusPreconditionFailed,
				fmt.Errorf("document %q", doc.ID))
		}
		return insertDocument(ctx, tx, path, doc)
	case err != nil:
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	if ifMatch != "" && ifMatch != current {
		return types.RawDocument{}, backend.NewError(backend.StatusPreconditionFailed,
			fmt.Errorf("document %q", doc.ID))
	}
	doc.Etag = newEtag()
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET etag = ?, value = ?
		 WHERE database = ? AND collection = ? AND partition = ? AND id = ?`,
		doc.Etag, string(doc.Value),
		path.Database, path.Collection, doc.PartitionKey, doc.ID); err != nil {
		return types.RawDocument{}, backend.NewError(backend.StatusUnknown, err)
	}
	if bErr := recordChange(ctx, tx, path, types.ChangeUpdate, doc); bErr != nil {
		return types.RawDocument{}, bErr
	}
	return doc, nil
}

// recordChange appends to the collection's change feed inside tx.
func recordChange(ctx context.Context, tx *sql.Tx, path backend.Path, kind types.ChangeType, doc types.RawDocument) *backend.Error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO changes (database, collection, type, partition, id, etag, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		path.Database, path.Collection, kind.String(), doc.PartitionKey, doc.ID, doc.Etag, string(doc.Value)); err != nil {
		return backend.NewError(backend.StatusUnknown, err)
	}
	return nil
}
