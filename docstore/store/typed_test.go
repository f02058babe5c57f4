package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/arthur-debert/docstore/docstore/memory"
	"github.com/arthur-debert/docstore/docstore/store"
	"github.com/arthur-debert/docstore/types"
)

type order struct {
	Customer string `json:"customer"`
	Quantity int    `json:"quantity"`
}

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	typed := store.NewTyped[order](memory.NewCollection())

	stored, err := typed.Add(ctx, types.Document[order]{
		ID:    "o1",
		Value: order{Customer: "acme", Quantity: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if stored.Etag == "" {
		t.Error("typed add must surface the etag")
	}

	got, ok, err := typed.Get(ctx, "o1", "")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Value.Customer != "acme" || got.Value.Quantity != 3 {
		t.Errorf("value did not round-trip: %+v", got.Value)
	}
}

func TestTypedConcurrencyControl(t *testing.T) {
	ctx := context.Background()
	typed := store.NewTyped[order](memory.NewCollection())

	v1, err := typed.Add(ctx, types.Document[order]{ID: "o1", Value: order{Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := typed.Replace(ctx, v1, order{Quantity: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := typed.Replace(ctx, v1, order{Quantity: 3}); !errors.Is(err, types.ErrOutOfDate) {
		t.Errorf("expected ErrOutOfDate through the typed view, got %v", err)
	}
}

func TestTypedSelect(t *testing.T) {
	ctx := context.Background()
	typed := store.NewTyped[order](memory.NewCollection())

	for _, doc := range []types.Document[order]{
		{ID: "o1", Value: order{Customer: "acme", Quantity: 1}},
		{ID: "o2", Value: order{Customer: "acme", Quantity: 5}},
		{ID: "o3", Value: order{Customer: "globex", Quantity: 5}},
	} {
		if _, err := typed.Add(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	feed, err := typed.Select(ctx, func(doc types.Document[order]) bool {
		return doc.Value.Customer == "acme" && doc.Value.Quantity >= 5
	}, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	all, err := types.Drain(ctx, feed)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != "o2" {
		t.Errorf("expected just o2, got %v", all)
	}
}

func TestTypedUpdate(t *testing.T) {
	ctx := context.Background()
	typed := store.NewTyped[order](memory.NewCollection())

	increment := func(value order, exists bool) (order, error) {
		value.Quantity++
		return value, nil
	}

	const workers = 4
	const rounds = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if _, err := typed.Update(ctx, "o1", "", increment); err != nil {
					t.Errorf("update failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	final, ok, err := typed.Get(ctx, "o1", "")
	if err != nil || !ok {
		t.Fatalf("final get: ok=%v err=%v", ok, err)
	}
	if final.Value.Quantity != workers*rounds {
		t.Errorf("lost updates: expected %d, got %d", workers*rounds, final.Value.Quantity)
	}
}
