package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arthur-debert/docstore/types"
	"github.com/google/uuid"
)

// CollectionLog appends audit entries as documents in a collection.
type CollectionLog struct {
	coll types.Collection
}

// NewCollectionLog wraps a collection as an audit sink.
func NewCollectionLog(coll types.Collection) *CollectionLog {
	return &CollectionLog{coll: coll}
}

// Write implements Log. Each entry is upserted under a fresh id, so audit
// writes never conflict.
func (l *CollectionLog) Write(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize audit entry: %w", err)
	}
	_, err = l.coll.Upsert(ctx, types.RawDocument{
		ID:    uuid.NewString(),
		Value: json.RawMessage(value),
	})
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Close implements Log; the underlying collection stays open.
func (l *CollectionLog) Close() error { return nil }
