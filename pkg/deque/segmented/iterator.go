// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package segmented

import (
	"unsafe"

	"github.com/cockroachdb/container/pkg/deque"
	"github.com/cockroachdb/container/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
)

// The cursor hierarchy has three levels. LocalIterator walks the slots of a
// single segment; SegmentIterator walks the live segments and hands out
// local cursors bounding each one's live slots; Iterator composes the two
// into a flat element cursor. Any mutation of the deque invalidates segment
// and composed cursors (the directory may have been reallocated or the live
// window moved); local cursors anchor to segment storage and survive
// everything except the segment leaving the live range.

// LocalIterator is a random-access cursor over one segment's slots. Its
// arithmetic is bounded by that segment: stepping across segment boundaries
// is the composed Iterator's job, and checked builds treat it as misuse.
type LocalIterator[T any] struct {
	seg []T
	i   int // in [0, len(seg)]; len(seg) is the one-past-the-end position
}

var _ deque.RandomAccess[*int, LocalIterator[int]] = LocalIterator[int]{}

// Deref returns the address of the slot under the cursor.
func (it LocalIterator[T]) Deref() *T {
	if buildutil.Invariants && (it.i < 0 || it.i >= len(it.seg)) {
		panic(errors.AssertionFailedf(
			"dereferencing a local cursor at slot %d of %d", it.i, len(it.seg)))
	}
	return &it.seg[it.i]
}

// Next returns a cursor advanced by one slot.
func (it LocalIterator[T]) Next() LocalIterator[T] { return it.Offset(1) }

// Prev returns a cursor moved back by one slot.
func (it LocalIterator[T]) Prev() LocalIterator[T] { return it.Offset(-1) }

// Offset returns a cursor moved by n slots within the same segment.
func (it LocalIterator[T]) Offset(n int) LocalIterator[T] {
	j := it.i + n
	if buildutil.Invariants && (j < 0 || j > len(it.seg)) {
		panic(errors.AssertionFailedf("local cursor offset by %d walks off its segment", n))
	}
	return LocalIterator[T]{seg: it.seg, i: j}
}

// Distance returns how many Next steps reach other from it.
func (it LocalIterator[T]) Distance(other LocalIterator[T]) int {
	it.check(other)
	return other.i - it.i
}

// Equal reports whether both cursors sit on the same slot of the same
// segment.
func (it LocalIterator[T]) Equal(other LocalIterator[T]) bool {
	return unsafe.SliceData(it.seg) == unsafe.SliceData(other.seg) && it.i == other.i
}

// Less reports whether it precedes other within their segment.
func (it LocalIterator[T]) Less(other LocalIterator[T]) bool {
	it.check(other)
	return it.i < other.i
}

// Index returns the cursor's slot index within its segment.
func (it LocalIterator[T]) Index() int { return it.i }

// Slice returns the contiguous slots from it up to other. This is the
// block-access primitive: a segment's live run is a plain []T.
func (it LocalIterator[T]) Slice(other LocalIterator[T]) []T {
	it.check(other)
	return it.seg[it.i:other.i]
}

func (it LocalIterator[T]) check(other LocalIterator[T]) {
	if buildutil.Invariants && unsafe.SliceData(it.seg) != unsafe.SliceData(other.seg) {
		panic(errors.AssertionFailedf("comparing local cursors from different segments"))
	}
}

// SegmentIterator is a random-access cursor over the live segments of a
// Deque. Dereferencing yields a local cursor at the segment's first live
// slot; Begin and End bound the segment's live slots, which are partial in
// the first and last live segments.
type SegmentIterator[T any] struct {
	d   *Deque[T]
	idx int // relative to the first live segment, in [0, segCount]
}

var _ deque.RandomAccess[LocalIterator[int], SegmentIterator[int]] = SegmentIterator[int]{}

// SegmentBegin returns a cursor on the first live segment, equal to
// SegmentEnd when the deque is empty.
func (d *Deque[T]) SegmentBegin() SegmentIterator[T] {
	return SegmentIterator[T]{d: d}
}

// SegmentEnd returns the cursor one past the last live segment.
func (d *Deque[T]) SegmentEnd() SegmentIterator[T] {
	return SegmentIterator[T]{d: d, idx: d.segCount}
}

func (it SegmentIterator[T]) segment() []T {
	if buildutil.Invariants && (it.idx < 0 || it.idx >= it.d.segCount) {
		panic(errors.AssertionFailedf(
			"segment cursor at %d of %d live segments", it.idx, it.d.segCount))
	}
	return it.d.dir[it.d.segStart+it.idx]
}

// Deref returns a local cursor on the segment's first live slot.
func (it SegmentIterator[T]) Deref() LocalIterator[T] { return it.Begin() }

// Begin returns a local cursor on the segment's first live slot.
func (it SegmentIterator[T]) Begin() LocalIterator[T] {
	lo := 0
	if it.idx == 0 {
		lo = it.d.frontOff
	}
	return LocalIterator[T]{seg: it.segment(), i: lo}
}

// End returns a local cursor one past the segment's last live slot.
func (it SegmentIterator[T]) End() LocalIterator[T] {
	hi := it.d.segSize
	if it.idx == it.d.segCount-1 {
		hi = it.d.backOff
	}
	return LocalIterator[T]{seg: it.segment(), i: hi}
}

// Next returns a cursor advanced by one segment.
func (it SegmentIterator[T]) Next() SegmentIterator[T] { return it.Offset(1) }

// Prev returns a cursor moved back by one segment.
func (it SegmentIterator[T]) Prev() SegmentIterator[T] { return it.Offset(-1) }

// Offset returns a cursor moved by n segments.
func (it SegmentIterator[T]) Offset(n int) SegmentIterator[T] {
	j := it.idx + n
	if buildutil.Invariants && (j < 0 || j > it.d.segCount) {
		panic(errors.AssertionFailedf(
			"segment cursor offset by %d lands outside the live range", n))
	}
	return SegmentIterator[T]{d: it.d, idx: j}
}

// Distance returns how many Next steps reach other from it.
func (it SegmentIterator[T]) Distance(other SegmentIterator[T]) int {
	it.check(other)
	return other.idx - it.idx
}

// Equal reports whether both cursors sit on the same live segment.
func (it SegmentIterator[T]) Equal(other SegmentIterator[T]) bool {
	return it.d == other.d && it.idx == other.idx
}

// Less reports whether it precedes other.
func (it SegmentIterator[T]) Less(other SegmentIterator[T]) bool {
	it.check(other)
	return it.idx < other.idx
}

func (it SegmentIterator[T]) check(other SegmentIterator[T]) {
	if buildutil.Invariants && it.d != other.d {
		panic(errors.AssertionFailedf("comparing segment cursors from different deques"))
	}
}

// Iterator is the composed element cursor: a live segment index paired with
// a slot offset. Moving past a segment's live end lands on the next
// segment's first live slot, except at the last live segment, where the
// cursor parks at the end position.
type Iterator[T any] struct {
	d   *Deque[T]
	seg int
	off int
}

var _ deque.RandomAccess[*int, Iterator[int]] = Iterator[int]{}

// Begin returns a cursor on the first element, equal to End on an empty
// deque.
func (d *Deque[T]) Begin() Iterator[T] {
	if d.segCount == 0 {
		return Iterator[T]{d: d}
	}
	return Iterator[T]{d: d, seg: 0, off: d.frontOff}
}

// End returns the cursor one past the last element.
func (d *Deque[T]) End() Iterator[T] {
	if d.segCount == 0 {
		return Iterator[T]{d: d}
	}
	return Iterator[T]{d: d, seg: d.segCount - 1, off: d.backOff}
}

// lin returns the cursor's linear position in [0, Len()].
func (it Iterator[T]) lin() int {
	if it.d.segCount == 0 {
		return 0
	}
	return it.seg*it.d.segSize + it.off - it.d.frontOff
}

// Deref returns the address of the element under the cursor.
func (it Iterator[T]) Deref() *T {
	d := it.d
	if buildutil.Invariants {
		if l := it.lin(); l < 0 || l >= d.size {
			panic(errors.AssertionFailedf(
				"dereferencing a cursor at position %d of %d", l, d.size))
		}
	}
	return &d.dir[d.segStart+it.seg][it.off]
}

// Next returns a cursor advanced by one element.
func (it Iterator[T]) Next() Iterator[T] { return it.Offset(1) }

// Prev returns a cursor moved back by one element.
func (it Iterator[T]) Prev() Iterator[T] { return it.Offset(-1) }

// Offset returns a cursor moved by n elements. The position is linearized
// and re-derived with one division, so jumps of any distance cost the same.
func (it Iterator[T]) Offset(n int) Iterator[T] {
	d := it.d
	l := it.lin() + n
	if buildutil.Invariants && (l < 0 || l > d.size) {
		panic(errors.AssertionFailedf("cursor offset by %d lands outside the deque", n))
	}
	if l >= d.size {
		return d.End()
	}
	abs := l + d.frontOff
	return Iterator[T]{d: d, seg: abs / d.segSize, off: abs % d.segSize}
}

// Distance returns how many Next steps reach other from it; negative when
// other precedes it.
func (it Iterator[T]) Distance(other Iterator[T]) int {
	it.check(other)
	return other.lin() - it.lin()
}

// Equal reports whether both cursors sit on the same position of the same
// deque.
func (it Iterator[T]) Equal(other Iterator[T]) bool {
	return it.d == other.d && it.seg == other.seg && it.off == other.off
}

// Less reports whether it precedes other.
func (it Iterator[T]) Less(other Iterator[T]) bool {
	it.check(other)
	return it.lin() < other.lin()
}

// Segment returns the segment-level cursor for the segment under it.
func (it Iterator[T]) Segment() SegmentIterator[T] {
	return SegmentIterator[T]{d: it.d, idx: it.seg}
}

// Local returns the local cursor for the cursor's slot within its segment.
func (it Iterator[T]) Local() LocalIterator[T] {
	d := it.d
	if buildutil.Invariants && it.lin() >= d.size {
		panic(errors.AssertionFailedf("taking the local cursor of the end cursor"))
	}
	return LocalIterator[T]{seg: d.dir[d.segStart+it.seg], i: it.off}
}

func (it Iterator[T]) check(other Iterator[T]) {
	if buildutil.Invariants && it.d != other.d {
		panic(errors.AssertionFailedf("comparing cursors from different deques"))
	}
}
