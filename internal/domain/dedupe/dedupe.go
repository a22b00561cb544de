// Package dedupe tracks user IDs that already have a recompute job in flight,
// so a user is queued at most once until the job finishes.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// defaultMaxSize bounds the pending set when no size is configured.
const defaultMaxSize = 50000

// Deduper records pending IDs.
type Deduper interface {
	// Mark records id as pending. It returns false when id is already
	// pending or the set is full; the caller then skips queuing.
	Mark(ctx context.Context, id string) bool

	// Done releases id so the next sweep may queue it again.
	Done(ctx context.Context, id string)

	// Pending reports whether id is marked.
	Pending(id string) bool

	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of pending IDs. maxSize <= 0 means
// unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	pending map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.pending = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) Mark(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[id]; ok {
		return false
	}
	if d.maxSize > 0 && len(d.pending) >= d.maxSize {
		return false
	}
	d.pending[id] = struct{}{}
	d.size.Add(1)
	return true
}

func (d *inMemoryDeduper) Done(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[id]; ok {
		delete(d.pending, id)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Pending(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	return ok
}

// Size returns the current number of pending IDs.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
