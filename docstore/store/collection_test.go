package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arthur-debert/docstore/docstore/store"
	"github.com/arthur-debert/docstore/types"
)

// openTestCollection builds a fresh fake-backed collection.
func openTestCollection(t *testing.T, partitioned bool) (*fakeBackend, *store.Collection) {
	t.Helper()
	ctx := context.Background()
	fake := newFakeBackend()
	server := newTestServer(fake)
	db, err := server.OpenDatabase(ctx, "db")
	if err != nil {
		t.Fatal(err)
	}
	coll, err := db.OpenCollection(ctx, "coll", partitioned)
	if err != nil {
		t.Fatal(err)
	}
	return fake, coll
}

func TestCollectionCRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadYourWrite", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		stored, err := coll.Add(ctx, types.RawDocument{ID: "a", PartitionKey: "p", Value: []byte(`{"n":1}`)})
		if err != nil {
			t.Fatal(err)
		}
		if stored.Etag == "" {
			t.Error("add must return the stored etag")
		}
		got, ok, err := coll.Get(ctx, "a", "p")
		if err != nil || !ok {
			t.Fatalf("get after add: ok=%v err=%v", ok, err)
		}
		if got.Etag != stored.Etag {
			t.Error("get must observe the write's etag")
		}
	})

	t.Run("AbsenceIsNotAnError", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		_, ok, err := coll.Get(ctx, "missing", "")
		if err != nil {
			t.Fatalf("expected absence as a normal outcome, got %v", err)
		}
		if ok {
			t.Error("expected ok=false")
		}
	})

	t.Run("DuplicateAddConflicts", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		if _, err := coll.Add(ctx, types.RawDocument{ID: "a", Value: []byte(`{}`)}); err != nil {
			t.Fatal(err)
		}
		if _, err := coll.Add(ctx, types.RawDocument{ID: "a", Value: []byte(`{}`)}); !errors.Is(err, types.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("StaleEtagUpsertFails", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		v1, err := coll.Add(ctx, types.RawDocument{ID: "a", Value: []byte(`{"n":1}`)})
		if err != nil {
			t.Fatal(err)
		}
		fresh := v1
		fresh.Value = []byte(`{"n":2}`)
		if _, err := coll.Upsert(ctx, fresh); err != nil {
			t.Fatalf("matching etag must win: %v", err)
		}
		stale := v1
		stale.Value = []byte(`{"n":3}`)
		if _, err := coll.Upsert(ctx, stale); !errors.Is(err, types.ErrOutOfDate) {
			t.Errorf("expected ErrOutOfDate, got %v", err)
		}
	})

	t.Run("ReplaceRequiresID", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		if _, err := coll.Replace(ctx, types.RawDocument{}, []byte(`{}`)); err == nil {
			t.Error("expected a validation error")
		}
	})

	t.Run("DeleteAbsentErrors", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		if err := coll.Delete(ctx, "missing", "", ""); !errors.Is(err, types.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteThenGetMisses", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		v1, err := coll.Add(ctx, types.RawDocument{ID: "a", Value: []byte(`{}`)})
		if err != nil {
			t.Fatal(err)
		}
		if err := coll.Delete(ctx, "a", "", v1.Etag); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := coll.Get(ctx, "a", ""); ok {
			t.Error("deleted document still visible")
		}
	})
}

func TestCollectionQuery(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, coll *store.Collection, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			doc := types.RawDocument{
				ID:           fmt.Sprintf("doc-%d", i),
				PartitionKey: "p",
				Value:        []byte(fmt.Sprintf(`{"n":%d}`, i)),
			}
			if _, err := coll.Add(ctx, doc); err != nil {
				t.Fatal(err)
			}
		}
	}

	t.Run("DrainsAllPages", func(t *testing.T) {
		fake, coll := openTestCollection(t, false)
		seed(t, coll, 5)

		feed, err := coll.Query(ctx, types.Query{PageSize: 2})
		if err != nil {
			t.Fatal(err)
		}
		all, err := types.Drain(ctx, feed)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 5 {
			t.Fatalf("expected 5 documents, got %d", len(all))
		}
		seen := make(map[string]bool)
		for _, doc := range all {
			if seen[doc.ID] {
				t.Errorf("duplicate document %q across pages", doc.ID)
			}
			seen[doc.ID] = true
		}
		if got := fake.callCount("query"); got != 3 {
			t.Errorf("expected 3 page fetches for 5 docs at page size 2, got %d", got)
		}
	})

	t.Run("PartitionedCollectionDropsKeyFilter", func(t *testing.T) {
		fake, coll := openTestCollection(t, true)
		seed(t, coll, 1)

		feed, err := coll.Query(ctx, types.Query{PartitionKey: "p"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := types.Drain(ctx, feed); err != nil {
			t.Fatal(err)
		}
		if fake.lastQuery.PartitionKey != "" {
			t.Error("physically partitioned collections must not forward the partition key")
		}
	})

	t.Run("ConventionPartitionedForwardsKey", func(t *testing.T) {
		fake, coll := openTestCollection(t, false)
		seed(t, coll, 1)

		feed, err := coll.Query(ctx, types.Query{PartitionKey: "p"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := types.Drain(ctx, feed); err != nil {
			t.Fatal(err)
		}
		if fake.lastQuery.PartitionKey != "p" {
			t.Errorf("expected the partition key hint to pass through, got %q", fake.lastQuery.PartitionKey)
		}
	})

	t.Run("ClientSideFilter", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		seed(t, coll, 4)

		feed, err := coll.QueryFunc(ctx, func(doc types.RawDocument) bool {
			return doc.ID == "doc-2"
		}, 2, "")
		if err != nil {
			t.Fatal(err)
		}
		all, err := types.Drain(ctx, feed)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 || all[0].ID != "doc-2" {
			t.Errorf("expected just doc-2, got %v", all)
		}
	})
}

func TestCollectionChanges(t *testing.T) {
	ctx := context.Background()
	_, coll := openTestCollection(t, false)

	v1, err := coll.Add(ctx, types.RawDocument{ID: "a", Value: []byte(`{"n":1}`)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := coll.Replace(ctx, v1, []byte(`{"n":2}`)); err != nil {
		t.Fatal(err)
	}

	feed, err := coll.Changes(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	all, err := types.Drain(ctx, feed)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(all))
	}
	if all[0].Type != types.ChangeAdd || all[1].Type != types.ChangeUpdate {
		t.Errorf("unexpected change sequence: %v, %v", all[0].Type, all[1].Type)
	}
}

func TestUpdateDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesWhenAbsent", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		result, err := store.UpdateDocument(ctx, coll, "counter", "", func(value json.RawMessage, exists bool) (json.RawMessage, error) {
			if exists {
				t.Error("expected the document to be absent")
			}
			return json.RawMessage(`{"n":1}`), nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if string(result.Value) != `{"n":1}` {
			t.Errorf("unexpected stored value: %s", result.Value)
		}
	})

	t.Run("TransformErrorSurfaces", func(t *testing.T) {
		_, coll := openTestCollection(t, false)
		wantErr := errors.New("bad input")
		_, err := store.UpdateDocument(ctx, coll, "x", "", func(json.RawMessage, bool) (json.RawMessage, error) {
			return nil, wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Errorf("expected the transform error, got %v", err)
		}
	})

	t.Run("RacingIncrementsConverge", func(t *testing.T) {
		_, coll := openTestCollection(t, false)

		type counter struct {
			N int `json:"n"`
		}
		increment := func(value json.RawMessage, exists bool) (json.RawMessage, error) {
			var c counter
			if exists {
				if err := json.Unmarshal(value, &c); err != nil {
					return nil, err
				}
			}
			c.N++
			return json.Marshal(c)
		}

		const workers = 4
		const rounds = 25
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < rounds; j++ {
					if _, err := store.UpdateDocument(ctx, coll, "counter", "", increment); err != nil {
						t.Errorf("update failed: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()

		final, ok, err := coll.Get(ctx, "counter", "")
		if err != nil || !ok {
			t.Fatalf("final read: ok=%v err=%v", ok, err)
		}
		var c counter
		if err := json.Unmarshal(final.Value, &c); err != nil {
			t.Fatal(err)
		}
		if c.N != workers*rounds {
			t.Errorf("lost updates: expected %d, got %d", workers*rounds, c.N)
		}
	})
}
