// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package segmented provides a double-ended queue backed by fixed-size
// segments.
//
// Elements live in segments of an immutable, caller-chosen size. A directory
// of segment pointers slides inside an over-allocated buffer, the same way
// the stable deque's index buffer does, so pushes at either end are
// amortized O(1) and segments never move once allocated. Emptied end
// segments are retired to a spare set rather than freed; reservations are
// expressed in whole segments; ShrinkToFit is the one operation that returns
// spares to the allocator.
//
// The segmentation is part of the API: SegmentBegin/SegmentEnd iterate over
// live segments and hand out per-segment cursors, which lets block-at-a-time
// algorithms (bulk copies, vectorized scans) work on contiguous []T runs
// instead of single elements. Begin/End compose the two levels into a flat
// element cursor whose arithmetic is still O(1).
package segmented

import (
	"context"

	"github.com/cockroachdb/container/pkg/alloc"
	"github.com/cockroachdb/container/pkg/deque"
	"github.com/cockroachdb/container/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Deque is a segmented double-ended queue. The zero value is not usable;
// construct with New. A Deque is a single-owner value: it performs no
// internal synchronization.
type Deque[T any] struct {
	segSize int

	// dir is the segment directory. Live segments occupy
	// dir[segStart : segStart+segCount); spare segments sit immediately
	// around them, spareFront before and spareBack after. Slots outside
	// the spare-to-spare window are nil.
	dir        [][]T
	segStart   int
	segCount   int
	spareFront int
	spareBack  int

	// frontOff is the first live slot of the first live segment, in
	// [0, segSize). backOff is one past the last live slot of the last live
	// segment, in (0, segSize]. Both are 0 when the deque is empty.
	frontOff int
	backOff  int
	size     int

	acc *alloc.Account // nil when unaccounted; covers the directory
	a   alloc.Allocator[T]
}

// Option configures a Deque.
type Option[T any] func(*Deque[T]) error

// WithAccount charges the segment directory to acc. Unless WithAllocator
// overrides it, segments are charged to the same account.
func WithAccount[T any](acc *alloc.Account) Option[T] {
	return func(d *Deque[T]) error {
		d.acc = acc
		return nil
	}
}

// WithAllocator sources segment buffers from a. The account, when one is
// configured, then covers only the directory. An alloc.PoolingAllocator here
// gives segment reuse across ShrinkToFit/Close cycles.
func WithAllocator[T any](a alloc.Allocator[T]) Option[T] {
	return func(d *Deque[T]) error {
		if a == nil {
			return errors.Newf("nil allocator")
		}
		d.a = a
		return nil
	}
}

// New returns a Deque with the given segment size and preallocSegments spare
// segments, split evenly between the ends (the extra one goes to the back).
func New[T any](
	ctx context.Context, segSize, preallocSegments int, opts ...Option[T],
) (*Deque[T], error) {
	if segSize < 1 {
		return nil, errors.Newf("segment size must be at least 1, got %d", segSize)
	}
	if preallocSegments < 0 {
		return nil, errors.Newf("negative segment preallocation: %d", preallocSegments)
	}
	d := &Deque[T]{segSize: segSize}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.a == nil {
		if d.acc != nil {
			d.a = alloc.AccountedAllocator[T](d.acc)
		} else {
			d.a = alloc.HeapAllocator[T]()
		}
	}
	if preallocSegments > 0 {
		half := preallocSegments / 2
		if err := d.reserveSpares(ctx, half, preallocSegments-half); err != nil {
			d.Close(ctx)
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of elements.
func (d *Deque[T]) Len() int { return d.size }

// Cap returns the number of element slots currently held, live and spare
// segments included.
func (d *Deque[T]) Cap() int {
	return (d.segCount + d.spareFront + d.spareBack) * d.segSize
}

// SegmentSize returns the immutable per-segment slot count.
func (d *Deque[T]) SegmentSize() int { return d.segSize }

// SegmentCount returns the number of live segments.
func (d *Deque[T]) SegmentCount() int { return d.segCount }

// SpareSegments returns the number of spare segments parked at each end.
func (d *Deque[T]) SpareSegments() (front, back int) {
	return d.spareFront, d.spareBack
}

// PushBack appends v, bringing a segment online when the last one is full:
// a back spare when one exists, a fresh allocation otherwise. On allocation
// failure no element is added and the deque stays valid.
func (d *Deque[T]) PushBack(ctx context.Context, v T) error {
	if d.segCount == 0 || d.backOff == d.segSize {
		if err := d.pushBackSegment(ctx); err != nil {
			return err
		}
	}
	d.dir[d.segStart+d.segCount-1][d.backOff] = v
	d.backOff++
	d.size++
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return nil
}

// PushFront prepends v, with the same segment policy as PushBack. The first
// push into a fresh front segment lands in its last slot.
func (d *Deque[T]) PushFront(ctx context.Context, v T) error {
	if d.segCount == 0 || d.frontOff == 0 {
		if err := d.pushFrontSegment(ctx); err != nil {
			return err
		}
	}
	d.frontOff--
	d.dir[d.segStart][d.frontOff] = v
	d.size++
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return nil
}

// PopFront removes and returns the first element. It returns deque.ErrEmpty
// on an empty deque. A front segment emptied by the pop is retired to the
// front spare set, not freed.
func (d *Deque[T]) PopFront(ctx context.Context) (T, error) {
	var zero T
	if d.size == 0 {
		return zero, deque.ErrEmpty
	}
	seg := d.dir[d.segStart]
	v := seg[d.frontOff]
	seg[d.frontOff] = zero
	d.frontOff++
	d.size--
	if d.size == 0 {
		d.retireFrontSegment()
		d.frontOff, d.backOff = 0, 0
	} else if d.frontOff == d.segSize {
		d.retireFrontSegment()
		d.frontOff = 0
	}
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return v, nil
}

// PopBack removes and returns the last element, retiring an emptied back
// segment to the back spare set.
func (d *Deque[T]) PopBack(ctx context.Context) (T, error) {
	var zero T
	if d.size == 0 {
		return zero, deque.ErrEmpty
	}
	seg := d.dir[d.segStart+d.segCount-1]
	d.backOff--
	v := seg[d.backOff]
	seg[d.backOff] = zero
	d.size--
	if d.size == 0 {
		d.retireBackSegment()
		d.frontOff, d.backOff = 0, 0
	} else if d.backOff == 0 {
		d.retireBackSegment()
		d.backOff = d.segSize
	}
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
	return d.dir[d.segStart][d.frontOff], nil
}

// Back returns the last element without removing it.
func (d *Deque[T]) Back() (T, error) {
	if d.size == 0 {
		var zero T
		return zero, deque.ErrEmpty
	}
	return d.dir[d.segStart+d.segCount-1][d.backOff-1], nil
}

// At returns the element i positions from the front (zero-based).
func (d *Deque[T]) At(i int) T {
	return *d.RefAt(i)
}

// RefAt returns the address of the element i positions from the front. The
// address stays valid until that element is removed; segments never move.
func (d *Deque[T]) RefAt(i int) *T {
	if i < 0 || i >= d.size {
		panic("index out of bounds")
	}
	lin := d.frontOff + i
	return &d.dir[d.segStart+lin/d.segSize][lin%d.segSize]
}

// ReserveFront ensures spare capacity for at least n more front pushes:
// ceil(n/SegmentSize) spare segments at the front, allocating only the
// difference. Live segments are untouched.
func (d *Deque[T]) ReserveFront(ctx context.Context, n int) error {
	need, err := d.segmentsFor(n)
	if err != nil {
		return err
	}
	return d.reserveSpares(ctx, need, 0)
}

// ReserveBack is the back-end counterpart of ReserveFront.
func (d *Deque[T]) ReserveBack(ctx context.Context, n int) error {
	need, err := d.segmentsFor(n)
	if err != nil {
		return err
	}
	return d.reserveSpares(ctx, 0, need)
}

// Reserve ensures spare capacity for n more pushes split between the ends,
// half in front (rounded down) and the rest in back, each end rounded up to
// whole segments.
func (d *Deque[T]) Reserve(ctx context.Context, n int) error {
	needF, err := d.segmentsFor(n / 2)
	if err != nil {
		return err
	}
	needB, err := d.segmentsFor(n - n/2)
	if err != nil {
		return err
	}
	return d.reserveSpares(ctx, needF, needB)
}

func (d *Deque[T]) segmentsFor(n int) (int, error) {
	if n < 0 {
		return 0, errors.Newf("reserving a negative count: %d", n)
	}
	return (n + d.segSize - 1) / d.segSize, nil
}

// reserveSpares tops up the spare sets to at least front/back segments. On
// allocation failure, spares already acquired are kept and the deque remains
// valid.
func (d *Deque[T]) reserveSpares(ctx context.Context, front, back int) error {
	addF := front - d.spareFront
	if addF < 0 {
		addF = 0
	}
	addB := back - d.spareBack
	if addB < 0 {
		addB = 0
	}
	if addF == 0 && addB == 0 {
		return nil
	}
	if d.dirFrontSlack() < addF || d.dirBackSlack() < addB {
		win := d.spareFront + d.segCount + d.spareBack
		newFront := d.dirFrontSlack()
		if addF > newFront {
			newFront = addF
		}
		newBack := d.dirBackSlack()
		if addB > newBack {
			newBack = addB
		}
		if err := d.reallocDir(ctx, newFront+win+newBack, newFront); err != nil {
			return err
		}
	}
	for i := 0; i < addF; i++ {
		seg, err := d.a.Alloc(ctx, d.segSize)
		if err != nil {
			return errors.Wrap(err, "allocating segment")
		}
		d.dir[d.segStart-d.spareFront-1] = seg
		d.spareFront++
	}
	for i := 0; i < addB; i++ {
		seg, err := d.a.Alloc(ctx, d.segSize)
		if err != nil {
			return errors.Wrap(err, "allocating segment")
		}
		d.dir[d.segStart+d.segCount+d.spareBack] = seg
		d.spareBack++
	}
	if buildutil.Invariants {
		d.checkInvariants()
	}
	return nil
}

// ShrinkToFit returns every spare segment to the allocator and shrinks the
// directory to exactly the live range.
func (d *Deque[T]) ShrinkToFit(ctx context.Context) error {
	d.freeSpares(ctx)
	if len(d.dir) == d.segCount {
		return nil
	}
	return d.reallocDir(ctx, d.segCount, 0)
}

// Clear removes every element and retires all live segments to the back
// spare set; no memory is released.
func (d *Deque[T]) Clear(ctx context.Context) {
	var zero T
	for i := 0; i < d.segCount; i++ {
		seg := d.dir[d.segStart+i]
		lo, hi := 0, d.segSize
		if i == 0 {
			lo = d.frontOff
		}
		if i == d.segCount-1 {
			hi = d.backOff
		}
		for j := lo; j < hi; j++ {
			seg[j] = zero
		}
	}
	d.spareBack += d.segCount
	d.segCount = 0
	d.frontOff, d.backOff = 0, 0
	d.size = 0
	if buildutil.Invariants {
		d.checkInvariants()
	}
}

// Close returns every segment to the allocator and releases the directory
// and its accounting. The deque must not be used afterwards.
func (d *Deque[T]) Close(ctx context.Context) {
	d.Clear(ctx)
	d.freeSpares(ctx)
	d.accShrink(ctx, alloc.SliceBytes[[]T](len(d.dir)))
	d.dir = nil
	d.segStart = 0
}

// pushBackSegment brings one segment online after the last live one,
// consuming a back spare when available.
func (d *Deque[T]) pushBackSegment(ctx context.Context) error {
	if d.spareBack > 0 {
		d.spareBack--
	} else {
		if err := d.ensureDirSlotBack(ctx); err != nil {
			return err
		}
		seg, err := d.a.Alloc(ctx, d.segSize)
		if err != nil {
			return errors.Wrap(err, "allocating segment")
		}
		d.dir[d.segStart+d.segCount] = seg
	}
	wasEmpty := d.segCount == 0
	d.segCount++
	d.backOff = 0
	if wasEmpty {
		d.frontOff = 0
	}
	return nil
}

// pushFrontSegment mirrors pushBackSegment at the front.
func (d *Deque[T]) pushFrontSegment(ctx context.Context) error {
	if d.spareFront > 0 {
		d.spareFront--
	} else {
		if err := d.ensureDirSlotFront(ctx); err != nil {
			return err
		}
		seg, err := d.a.Alloc(ctx, d.segSize)
		if err != nil {
			return errors.Wrap(err, "allocating segment")
		}
		d.dir[d.segStart-1] = seg
	}
	wasEmpty := d.segCount == 0
	d.segStart--
	d.segCount++
	d.frontOff = d.segSize
	if wasEmpty {
		d.backOff = d.segSize
	}
	return nil
}

func (d *Deque[T]) retireFrontSegment() {
	d.segStart++
	d.segCount--
	d.spareFront++
}

func (d *Deque[T]) retireBackSegment() {
	d.segCount--
	d.spareBack++
}

func (d *Deque[T]) dirFrontSlack() int {
	return d.segStart - d.spareFront
}

func (d *Deque[T]) dirBackSlack() int {
	return len(d.dir) - d.segStart - d.segCount - d.spareBack
}

func (d *Deque[T]) ensureDirSlotBack(ctx context.Context) error {
	if d.dirBackSlack() > 0 {
		return nil
	}
	newCap := 2 * len(d.dir)
	if newCap == 0 {
		newCap = 1
	}
	win := d.spareFront + d.segCount + d.spareBack
	newStart := 2 * d.dirFrontSlack()
	if most := newCap - win - 1; newStart > most {
		newStart = most
	}
	return d.reallocDir(ctx, newCap, newStart)
}

func (d *Deque[T]) ensureDirSlotFront(ctx context.Context) error {
	if d.dirFrontSlack() > 0 {
		return nil
	}
	newCap := 2 * len(d.dir)
	if newCap == 0 {
		newCap = 1
	}
	win := d.spareFront + d.segCount + d.spareBack
	newStart := newCap - 2*d.dirBackSlack() - win
	if newStart < 1 {
		newStart = 1
	}
	return d.reallocDir(ctx, newCap, newStart)
}

// reallocDir moves the occupied directory window (spares included) into a
// fresh directory of newCap slots, its first occupied slot at newStart.
// Segments do not move, so element addresses survive; composed and segment
// cursors do not. On allocation failure the deque is unchanged.
func (d *Deque[T]) reallocDir(ctx context.Context, newCap, newStart int) error {
	win := d.spareFront + d.segCount + d.spareBack
	if buildutil.Invariants {
		if newStart < 0 || newStart+win > newCap {
			panic(errors.AssertionFailedf(
				"bad directory window [%d,%d) for %d slots", newStart, newStart+win, newCap))
		}
	}
	if err := d.accGrow(ctx, alloc.SliceBytes[[]T](newCap)); err != nil {
		return errors.Wrap(err, "growing segment directory")
	}
	newDir := make([][]T, newCap)
	lo := d.segStart - d.spareFront
	copy(newDir[newStart:], d.dir[lo:lo+win])
	d.accShrink(ctx, alloc.SliceBytes[[]T](len(d.dir)))
	d.dir = newDir
	d.segStart = newStart + d.spareFront
	return nil
}

func (d *Deque[T]) freeSpares(ctx context.Context) {
	for i := d.segStart - d.spareFront; i < d.segStart; i++ {
		d.a.Free(ctx, d.dir[i])
		d.dir[i] = nil
	}
	d.spareFront = 0
	for i := d.segStart + d.segCount; i < d.segStart+d.segCount+d.spareBack; i++ {
		d.a.Free(ctx, d.dir[i])
		d.dir[i] = nil
	}
	d.spareBack = 0
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

// checkInvariants validates the directory window, the spare ranges, the
// offsets, and the cached size. Called after mutations in checked builds and
// by tests directly.
func (d *Deque[T]) checkInvariants() {
	lo := d.segStart - d.spareFront
	hi := d.segStart + d.segCount + d.spareBack
	if lo < 0 || hi > len(d.dir) || d.segCount < 0 || d.spareFront < 0 || d.spareBack < 0 {
		panic(errors.AssertionFailedf(
			"bad directory window: segStart=%d segCount=%d spares=%d+%d dir=%d",
			d.segStart, d.segCount, d.spareFront, d.spareBack, len(d.dir)))
	}
	for i, seg := range d.dir {
		if i >= lo && i < hi {
			if seg == nil {
				panic(errors.AssertionFailedf("segment slot %d in the window is nil", i))
			}
			if len(seg) != d.segSize {
				panic(errors.AssertionFailedf(
					"segment at slot %d has %d slots, want %d", i, len(seg), d.segSize))
			}
		} else if seg != nil {
			panic(errors.AssertionFailedf("segment slot %d outside the window is populated", i))
		}
	}
	if d.segCount == 0 {
		if d.frontOff != 0 || d.backOff != 0 || d.size != 0 {
			panic(errors.AssertionFailedf(
				"empty deque with offsets %d/%d and size %d", d.frontOff, d.backOff, d.size))
		}
		return
	}
	if d.frontOff < 0 || d.frontOff >= d.segSize || d.backOff <= 0 || d.backOff > d.segSize {
		panic(errors.AssertionFailedf(
			"offsets %d/%d outside a segment of %d slots", d.frontOff, d.backOff, d.segSize))
	}
	if d.segCount == 1 && d.frontOff >= d.backOff {
		panic(errors.AssertionFailedf(
			"single segment with crossed offsets %d/%d", d.frontOff, d.backOff))
	}
	if want := d.segCount*d.segSize - d.frontOff - (d.segSize - d.backOff); want != d.size {
		panic(errors.AssertionFailedf("cached size %d, computed %d", d.size, want))
	}
}

// String returns a printable summary, not the elements.
func (d *Deque[T]) String() string { return redact.StringWithoutMarkers(d) }

// SafeFormat implements redact.SafeFormatter.
func (d *Deque[T]) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("segmented.Deque{len=%d segsize=%d segs=%d spares=%d+%d}",
		d.size, d.segSize, d.segCount, d.spareFront, d.spareBack)
}
