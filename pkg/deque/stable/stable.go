// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package stable provides a double-ended queue whose elements never move.
//
// Every element lives in its own heap node; the deque itself is a window of
// node pointers sliding inside an over-allocated index buffer. Growth
// reallocates and copies pointers only, so the address of an element, once
// returned by a push or RefAt, stays valid until that element is removed.
// This is the property that distinguishes it from slice-backed deques, which
// move their elements on every reallocation.
//
// The price is one pointer indirection per access and one small allocation
// per element. WithNodePool recycles nodes across pop/push cycles to cut the
// allocation traffic.
package stable

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/container/pkg/alloc"
	"github.com/cockroachdb/container/pkg/deque"
	"github.com/cockroachdb/container/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// node owns one element. The deque never moves nodes; growth relocates the
// pointers in the index buffer and rewrites pos, the node's slot index. A
// destroyed node's pos is poisoned to -1 so checked builds can catch cursors
// that outlived their element.
type node[T any] struct {
	val T
	pos int
}

func nodeBytes[T any]() int64 {
	var n node[T]
	return int64(unsafe.Sizeof(n))
}

// Deque is a double-ended queue with stable element addresses. Construct
// with New. A Deque is a single-owner value: it performs no internal
// synchronization.
type Deque[T any] struct {
	buf   []*node[T]
	start int // first live slot; the front slack is buf[:start]
	size  int

	acc     *alloc.Account // nil when unaccounted
	pool    []*node[T]     // freelist of destroyed nodes, at most poolCap
	poolCap int
}

// Option configures a Deque.
type Option[T any] func(*Deque[T]) error

// WithAccount charges the index buffer and every node to acc. The charges
// are released as elements are popped and fully on Close.
func WithAccount[T any](acc *alloc.Account) Option[T] {
	return func(d *Deque[T]) error {
		d.acc = acc
		return nil
	}
}

// WithNodePool keeps up to n destroyed nodes for reuse by later pushes.
// Pooled nodes stay charged to the account until Close or ShrinkToFit.
func WithNodePool[T any](n int) Option[T] {
	return func(d *Deque[T]) error {
		if n < 0 {
			return errors.Newf("node pool size must be non-negative, got %d", n)
		}
		d.poolCap = n
		return nil
	}
}

// New returns an empty Deque. It does not allocate; the first push does.
func New[T any](opts ...Option[T]) (*Deque[T], error) {
	d := &Deque[T]{}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of elements.
func (d *Deque[T]) Len() int { return d.size }

// Cap returns the number of slots in the index buffer.
func (d *Deque[T]) Cap() int { return len(d.buf) }

// FrontSlack returns how many PushFronts fit before the next reallocation.
func (d *Deque[T]) FrontSlack() int { return d.start }

// BackSlack returns how many PushBacks fit before the next reallocation.
func (d *Deque[T]) BackSlack() int { return len(d.buf) - d.start - d.size }

// PushBack appends v and returns the address of the stored element. The
// address stays valid until the element is removed, whatever happens to the
// rest of the deque. On allocation failure the deque is unchanged.
func (d *Deque[T]) PushBack(ctx context.Context, v T) (*T, error) {
	n, err := d.newNode(ctx, v)
	if err != nil {
		return nil, err
	}
	if d.BackSlack() == 0 {
		if err := d.grow(ctx, false /* atFront */); err != nil {
			d.destroyNode(ctx, n)
			return nil, err
		}
	}
	slot := d.start + d.size
	n.pos = slot
	d.buf[slot] = n
	d.size++
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return &n.val, nil
}

// PushFront prepends v and returns the address of the stored element, with
// the same validity guarantee as PushBack.
func (d *Deque[T]) PushFront(ctx context.Context, v T) (*T, error) {
	n, err := d.newNode(ctx, v)
	if err != nil {
		return nil, err
	}
	if d.FrontSlack() == 0 {
		if err := d.grow(ctx, true /* atFront */); err != nil {
			d.destroyNode(ctx, n)
			return nil, err
		}
	}
	d.start--
	n.pos = d.start
	d.buf[d.start] = n
	d.size++
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return &n.val, nil
}

// PopFront removes and returns the first element. It returns deque.ErrEmpty
// on an empty deque. The index buffer never shrinks on pops.
func (d *Deque[T]) PopFront(ctx context.Context) (T, error) {
	if d.size == 0 {
		var zero T
		return zero, deque.ErrEmpty
	}
	n := d.buf[d.start]
	d.buf[d.start] = nil
	d.start++
	d.size--
	v := n.val
	d.destroyNode(ctx, n)
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return v, nil
}

// PopBack removes and returns the last element. It returns deque.ErrEmpty on
// an empty deque.
func (d *Deque[T]) PopBack(ctx context.Context) (T, error) {
	if d.size == 0 {
		var zero T
		return zero, deque.ErrEmpty
	}
	slot := d.start + d.size - 1
	n := d.buf[slot]
	d.buf[slot] = nil
	d.size--
	v := n.val
	d.destroyNode(ctx, n)
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return v, nil
}

// Front returns the first element without removing it.
func (d *Deque[T]) Front() (T, error) {
	if d.size == 0 {
		var zero T
		return zero, deque.ErrEmpty
	}
	return d.buf[d.start].val, nil
}

// Back returns the last element without removing it.
func (d *Deque[T]) Back() (T, error) {
	if d.size == 0 {
		var zero T
		return zero, deque.ErrEmpty
	}
	return d.buf[d.start+d.size-1].val, nil
}

// At returns the element i positions from the front (zero-based).
func (d *Deque[T]) At(i int) T {
	return *d.RefAt(i)
}

// RefAt returns the address of the element i positions from the front. The
// pointer stays valid until that element is removed.
func (d *Deque[T]) RefAt(i int) *T {
	if i < 0 || i >= d.size {
		panic("index out of bounds")
	}
	return &d.buf[d.start+i].val
}

// ReserveFront ensures at least n free slots at the front, reallocating the
// index buffer at most once. The back slack is never reduced. When the
// existing slack already suffices nothing is reallocated, so subsequent
// pushes within the reservation cannot fail.
func (d *Deque[T]) ReserveFront(ctx context.Context, n int) error {
	return d.reserve(ctx, n, 0)
}

// ReserveBack is the back-end counterpart of ReserveFront.
func (d *Deque[T]) ReserveBack(ctx context.Context, n int) error {
	return d.reserve(ctx, 0, n)
}

// Reserve ensures room for n more pushes split between the ends, half in
// front (rounded down) and the rest in back, with at most one reallocation.
func (d *Deque[T]) Reserve(ctx context.Context, n int) error {
	if n < 0 {
		return errors.Newf("reserving a negative count: %d", n)
	}
	return d.reserve(ctx, n/2, n-n/2)
}

func (d *Deque[T]) reserve(ctx context.Context, front, back int) error {
	if front < 0 || back < 0 {
		return errors.Newf("reserving a negative count: %d", front+back)
	}
	newFront := d.FrontSlack()
	if front > newFront {
		newFront = front
	}
	newBack := d.BackSlack()
	if back > newBack {
		newBack = back
	}
	newCap := newFront + d.size + newBack
	if newCap == len(d.buf) {
		return nil
	}
	return d.realloc(ctx, newCap, newFront)
}

// ShrinkToFit reallocates the index buffer to exactly Len() slots, dropping
// all slack, and releases pooled nodes. The next push at either end will
// reallocate.
func (d *Deque[T]) ShrinkToFit(ctx context.Context) error {
	d.drainPool(ctx)
	if len(d.buf) == d.size {
		return nil
	}
	return d.realloc(ctx, d.size, 0)
}

// Clear removes every element. Capacity and pooled nodes are kept, so a
// cleared deque refills without reallocating.
func (d *Deque[T]) Clear(ctx context.Context) {
	for i := d.start; i < d.start+d.size; i++ {
		n := d.buf[i]
		d.buf[i] = nil
		d.destroyNode(ctx, n)
	}
	d.size = 0
	if buildutil.Invariants {
		d.checkInvariants()
	}
}

// Close releases the index buffer, the pooled nodes, and every accounting
// charge. The deque must not be used afterwards.
func (d *Deque[T]) Close(ctx context.Context) {
	d.Clear(ctx)
	d.drainPool(ctx)
	d.accShrink(ctx, alloc.SliceBytes[*node[T]](len(d.buf)))
	d.buf = nil
	d.start = 0
}

// grow reallocates the index buffer at double the capacity ahead of a push
// at an exhausted end. The opposite end's slack doubles with the capacity,
// preserving its share; all remaining space opens up at the pushing end, so
// that end's slack becomes at least the deque's size and pushes stay
// amortized O(1). Nodes are untouched, which is what keeps element addresses
// stable across growth.
func (d *Deque[T]) grow(ctx context.Context, atFront bool) error {
	newCap := 2 * len(d.buf)
	if newCap == 0 {
		newCap = 1
	}
	var newStart int
	if atFront {
		newStart = newCap - 2*d.BackSlack() - d.size
		if newStart < 1 {
			// Degenerate window placement: guarantee one front slot.
			newStart = 1
		}
	} else {
		newStart = 2 * d.start
		if most := newCap - d.size - 1; newStart > most {
			// Degenerate window placement: guarantee one back slot.
			newStart = most
		}
	}
	return d.realloc(ctx, newCap, newStart)
}

// realloc moves the window of node pointers into a fresh buffer of newCap
// slots with the first live slot at newStart, rewriting each node's pos. On
// allocation failure the deque is unchanged. Both buffers are charged while
// the copy runs.
func (d *Deque[T]) realloc(ctx context.Context, newCap, newStart int) error {
	if buildutil.Invariants {
		if newStart < 0 || newStart+d.size > newCap {
			panic(errors.AssertionFailedf(
				"bad window [%d,%d) for a buffer of %d slots", newStart, newStart+d.size, newCap))
		}
	}
	if err := d.accGrow(ctx, alloc.SliceBytes[*node[T]](newCap)); err != nil {
		return errors.Wrap(err, "growing index buffer")
	}
	newBuf := make([]*node[T], newCap)
	copy(newBuf[newStart:], d.buf[d.start:d.start+d.size])
	for i := newStart; i < newStart+d.size; i++ {
		newBuf[i].pos = i
	}
	d.accShrink(ctx, alloc.SliceBytes[*node[T]](len(d.buf)))
	d.buf = newBuf
	d.start = newStart
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return nil
}

func (d *Deque[T]) newNode(ctx context.Context, v T) (*node[T], error) {
	if l := len(d.pool); l > 0 {
		n := d.pool[l-1]
		d.pool[l-1] = nil
		d.pool = d.pool[:l-1]
		n.val = v
		return n, nil
	}
	if err := d.accGrow(ctx, nodeBytes[T]()); err != nil {
		return nil, errors.Wrap(err, "allocating node")
	}
	return &node[T]{val: v}, nil
}

func (d *Deque[T]) destroyNode(ctx context.Context, n *node[T]) {
	var zero T
	n.val = zero
	n.pos = -1
	if len(d.pool) < d.poolCap {
		d.pool = append(d.pool, n)
		return
	}
	d.accShrink(ctx, nodeBytes[T]())
}

func (d *Deque[T]) drainPool(ctx context.Context) {
	if len(d.pool) == 0 {
		return
	}
	d.accShrink(ctx, nodeBytes[T]()*int64(len(d.pool)))
	d.pool = nil
}

func (d *Deque[T]) accGrow(ctx context.Context, n int64) error {
	if d.acc == nil {
		return nil
	}
	return d.acc.Grow(ctx, n)
}

func (d *Deque[T]) accShrink(ctx context.Context, n int64) {
	if d.acc != nil {
		d.acc.Shrink(ctx, n)
	}
}

// checkInvariants validates the window and every node back-reference. Called
// after mutations in checked builds and by tests directly.
func (d *Deque[T]) checkInvariants() {
	if d.start < 0 || d.start+d.size > len(d.buf) {
		panic(errors.AssertionFailedf(
			"window [%d,%d) outside a buffer of %d slots", d.start, d.start+d.size, len(d.buf)))
	}
	for i, n := range d.buf {
		if live := i >= d.start && i < d.start+d.size; live {
			if n == nil {
				panic(errors.AssertionFailedf("live slot %d is nil", i))
			}
			if n.pos != i {
				panic(errors.AssertionFailedf("node at slot %d carries pos %d", i, n.pos))
			}
		} else if n != nil {
			panic(errors.AssertionFailedf("slot %d outside the window is populated", i))
		}
	}
	if len(d.pool) > d.poolCap {
		panic(errors.AssertionFailedf("%d pooled nodes exceed the pool size %d", len(d.pool), d.poolCap))
	}
}

// String returns a printable summary, not the elements.
func (d *Deque[T]) String() string { return redact.StringWithoutMarkers(d) }

// SafeFormat implements redact.SafeFormatter.
func (d *Deque[T]) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("stable.Deque{len=%d cap=%d slack=%d+%d}",
		d.size, len(d.buf), d.FrontSlack(), d.BackSlack())
}
