package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/polyrag/polyrag/engine/semantic"
)

type fakeStore struct {
	batches [][]semantic.Point
	err     error
}

func (s *fakeStore) Upsert(_ context.Context, points []semantic.Point) error {
	if s.err != nil {
		return s.err
	}
	batch := make([]semantic.Point, len(points))
	copy(batch, points)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeStore) total() int {
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func points(n int) []semantic.Point {
	out := make([]semantic.Point, n)
	for i := range out {
		out[i] = semantic.Point{ID: fmt.Sprintf("p%d", i)}
	}
	return out
}

func TestBufferBatching(t *testing.T) {
	store := &fakeStore{}
	buf := NewBuffer(store, 32)
	ctx := context.Background()

	if err := buf.Add(ctx, points(70)...); err != nil {
		t.Fatal(err)
	}
	if err := buf.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	sizes := make([]int, len(store.batches))
	for i, b := range store.batches {
		sizes[i] = len(b)
	}
	if len(sizes) != 3 || sizes[0] != 32 || sizes[1] != 32 || sizes[2] != 6 {
		t.Errorf("batch sizes = %v, want [32 32 6]", sizes)
	}

	// Exactly once: every ID appears a single time across all batches.
	seen := make(map[string]int)
	for _, b := range store.batches {
		for _, p := range b {
			seen[p.ID]++
		}
	}
	if len(seen) != 70 {
		t.Errorf("distinct points written = %d, want 70", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("point %s written %d times", id, n)
		}
	}
}

func TestBufferFlushEmpty(t *testing.T) {
	store := &fakeStore{}
	buf := NewBuffer(store, 32)

	if err := buf.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.batches) != 0 {
		t.Errorf("empty flush wrote %d batches", len(store.batches))
	}
}

func TestBufferDoubleFlush(t *testing.T) {
	store := &fakeStore{}
	buf := NewBuffer(store, 32)
	ctx := context.Background()

	buf.Add(ctx, points(5)...)
	buf.Flush(ctx)
	buf.Flush(ctx)

	if store.total() != 5 {
		t.Errorf("wrote %d points, want 5", store.total())
	}
	if buf.Flushed() != 5 || buf.Pending() != 0 {
		t.Errorf("flushed=%d pending=%d", buf.Flushed(), buf.Pending())
	}
}

func TestBufferUpsertErrorKeepsPending(t *testing.T) {
	store := &fakeStore{err: errors.New("qdrant down")}
	buf := NewBuffer(store, 4)
	ctx := context.Background()

	if err := buf.Add(ctx, points(4)...); err == nil {
		t.Fatal("expected upsert error")
	}
	if buf.Pending() != 4 {
		t.Errorf("pending = %d, want 4 after failed flush", buf.Pending())
	}

	// Store recovers; the same points flush once.
	store.err = nil
	if err := buf.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if store.total() != 4 {
		t.Errorf("wrote %d, want 4", store.total())
	}
}

func TestBufferDefaultSize(t *testing.T) {
	buf := NewBuffer(&fakeStore{}, 0)
	if buf.size != DefaultBatchSize {
		t.Errorf("size = %d, want %d", buf.size, DefaultBatchSize)
	}
}
