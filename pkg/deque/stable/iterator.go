// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stable

import (
	"github.com/cockroachdb/container/pkg/deque"
	"github.com/cockroachdb/container/pkg/util/buildutil"
	"github.com/cockroachdb/errors"
)

// Iterator is a random-access cursor over a Deque. It anchors to the
// element's node rather than to a buffer slot, so growth, reservations, and
// operations at the other end leave it valid and positioned on the same
// element. It is invalidated only when its own element is removed; checked
// builds detect most such uses through the node's poisoned position.
//
// The end position carries a nil node.
type Iterator[T any] struct {
	d *Deque[T]
	n *node[T]
}

var _ deque.RandomAccess[*int, Iterator[int]] = Iterator[int]{}

// Begin returns a cursor on the first element, equal to End on an empty
// deque.
func (d *Deque[T]) Begin() Iterator[T] {
	if d.size == 0 {
		return Iterator[T]{d: d}
	}
	return Iterator[T]{d: d, n: d.buf[d.start]}
}

// End returns the cursor one past the last element.
func (d *Deque[T]) End() Iterator[T] {
	return Iterator[T]{d: d}
}

// slot returns the cursor's position in the index buffer; the end cursor
// maps to one past the window.
func (it Iterator[T]) slot() int {
	if it.n == nil {
		return it.d.start + it.d.size
	}
	if buildutil.Invariants && it.n.pos < 0 {
		panic(errors.AssertionFailedf("cursor used after its element was removed"))
	}
	return it.n.pos
}

// Deref returns the address of the element under the cursor. Dereferencing
// the end cursor is a programmer error.
func (it Iterator[T]) Deref() *T {
	if buildutil.Invariants {
		if it.n == nil {
			panic(errors.AssertionFailedf("dereferencing the end cursor"))
		}
		if it.n.pos < 0 {
			panic(errors.AssertionFailedf("cursor used after its element was removed"))
		}
	}
	return &it.n.val
}

// Next returns a cursor advanced by one position.
func (it Iterator[T]) Next() Iterator[T] { return it.Offset(1) }

// Prev returns a cursor moved back by one position.
func (it Iterator[T]) Prev() Iterator[T] { return it.Offset(-1) }

// Offset returns a cursor moved by n positions. The destination must lie
// within [Begin(), End()].
func (it Iterator[T]) Offset(n int) Iterator[T] {
	d := it.d
	s := it.slot() + n
	if s < d.start || s > d.start+d.size {
		if buildutil.Invariants {
			panic(errors.AssertionFailedf(
				"cursor offset by %d lands outside the deque", n))
		}
	}
	if s == d.start+d.size {
		return Iterator[T]{d: d}
	}
	return Iterator[T]{d: d, n: d.buf[s]}
}

// Distance returns how many Next steps reach other from it; negative when
// other precedes it.
func (it Iterator[T]) Distance(other Iterator[T]) int {
	it.check(other)
	return other.slot() - it.slot()
}

// Equal reports whether both cursors sit on the same position of the same
// deque.
func (it Iterator[T]) Equal(other Iterator[T]) bool {
	return it.d == other.d && it.n == other.n
}

// Less reports whether it precedes other.
func (it Iterator[T]) Less(other Iterator[T]) bool {
	it.check(other)
	return it.slot() < other.slot()
}

func (it Iterator[T]) check(other Iterator[T]) {
	if buildutil.Invariants && it.d != other.d {
		panic(errors.AssertionFailedf("comparing cursors from different deques"))
	}
}
