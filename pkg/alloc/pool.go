// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package alloc

import "context"

// PoolingAllocator keeps a bounded freelist of equally-sized slices on top of
// an inner Allocator. Freed slices are zeroed and parked on the freelist;
// a later Alloc of the same length is served from the freelist without
// touching the inner allocator. This suits segmented containers, which
// allocate and free blocks of one fixed length.
//
// Memory parked on the freelist remains charged to the inner allocator's
// account, if it has one. Drain returns the parked slices to the inner
// allocator and releases those charges.
type PoolingAllocator[T any] struct {
	inner   Allocator[T]
	maxIdle int
	free    [][]T
	stats   PoolStats
}

// PoolStats counts a PoolingAllocator's traffic.
type PoolStats struct {
	Allocs int64 // calls to Alloc
	Frees  int64 // calls to Free
	Hits   int64 // Allocs served from the freelist
	Parked int64 // Frees parked on the freelist
}

// NewPoolingAllocator wraps inner with a freelist holding at most maxIdle
// slices. Frees beyond maxIdle fall through to inner.
func NewPoolingAllocator[T any](inner Allocator[T], maxIdle int) *PoolingAllocator[T] {
	return &PoolingAllocator[T]{
		inner:   inner,
		maxIdle: maxIdle,
		free:    make([][]T, 0, maxIdle),
	}
}

// Alloc implements Allocator.
func (p *PoolingAllocator[T]) Alloc(ctx context.Context, n int) ([]T, error) {
	p.stats.Allocs++
	if l := len(p.free); l > 0 && len(p.free[l-1]) == n {
		s := p.free[l-1]
		p.free[l-1] = nil
		p.free = p.free[:l-1]
		p.stats.Hits++
		return s, nil
	}
	return p.inner.Alloc(ctx, n)
}

// Free implements Allocator. The freed slice is zeroed immediately so that
// parked memory does not pin the caller's values.
func (p *PoolingAllocator[T]) Free(ctx context.Context, s []T) {
	p.stats.Frees++
	if len(p.free) < p.maxIdle {
		var zero T
		for i := range s {
			s[i] = zero
		}
		p.free = append(p.free, s)
		p.stats.Parked++
		return
	}
	p.inner.Free(ctx, s)
}

// Drain hands every parked slice back to the inner allocator.
func (p *PoolingAllocator[T]) Drain(ctx context.Context) {
	for i, s := range p.free {
		p.inner.Free(ctx, s)
		p.free[i] = nil
	}
	p.free = p.free[:0]
}

// Idle returns the number of slices currently parked.
func (p *PoolingAllocator[T]) Idle() int { return len(p.free) }

// Stats returns a snapshot of the pool's counters.
func (p *PoolingAllocator[T]) Stats() PoolStats { return p.stats }

var _ Allocator[int] = (*PoolingAllocator[int])(nil)
