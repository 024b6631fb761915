package index

import (
	"context"
	"sync"

	"github.com/polyrag/polyrag/engine/semantic"
)

// DefaultBatchSize is the point count that triggers an automatic flush.
const DefaultBatchSize = 32

// Upserter is the write half of the store the buffer drains into.
type Upserter interface {
	Upsert(ctx context.Context, points []semantic.Point) error
}

// Buffer accumulates points and writes them in batches. A batch is written
// exactly once: either when Add fills it or by the final Flush. Safe for
// concurrent Add.
type Buffer struct {
	mu      sync.Mutex
	store   Upserter
	size    int
	pending []semantic.Point
	flushed int
}

// NewBuffer creates a Buffer flushing every size points. size <= 0 uses
// DefaultBatchSize.
func NewBuffer(store Upserter, size int) *Buffer {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Buffer{store: store, size: size, pending: make([]semantic.Point, 0, size)}
}

// Add appends points, flushing each time the buffer reaches its batch size.
// On flush failure the unwritten points stay pending and the error is
// returned; the caller decides whether to abort.
func (b *Buffer) Add(ctx context.Context, points ...semantic.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range points {
		b.pending = append(b.pending, p)
		if len(b.pending) >= b.size {
			if err := b.flushLocked(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes whatever remains. Call once after the last Add; a second
// Flush on an empty buffer is a no-op.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

func (b *Buffer) flushLocked(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.store.Upsert(ctx, b.pending); err != nil {
		return err
	}
	b.flushed += len(b.pending)
	b.pending = b.pending[:0]
	return nil
}

// Flushed returns the number of points written so far.
func (b *Buffer) Flushed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}

// Pending returns the number of points not yet written.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
