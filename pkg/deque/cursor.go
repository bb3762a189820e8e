// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package deque

// RandomAccess is the contract satisfied by every cursor type in the
// container subpackages. V is what the cursor dereferences to and It is the
// concrete cursor type itself, so arithmetic stays fully typed:
//
//	it := d.Begin()
//	for ; !it.Equal(d.End()); it = it.Next() {
//		use(*it.Deref())
//	}
//
// Cursors are small values. The navigation methods return new cursors
// rather than mutating the receiver. Offset and Distance are O(1) for every
// implementation in this module, whatever the distance.
//
// A cursor is positioned either on an element or at the container's one-past-
// the-end position. Dereferencing the end position, moving outside
// [Begin(), End()], or ordering cursors from different containers is a
// programmer error: checked builds (the invariants or race build tags) panic
// with an assertion, production builds leave the behavior undefined. Equal
// across containers is answerable and returns false.
type RandomAccess[V, It any] interface {
	// Deref returns the value the cursor is positioned on.
	Deref() V
	// Next returns a cursor advanced by one position.
	Next() It
	// Prev returns a cursor moved back by one position.
	Prev() It
	// Offset returns a cursor moved by n positions; n may be negative.
	Offset(n int) It
	// Distance returns how many Next steps reach other from the receiver;
	// it is negative when other precedes the receiver.
	Distance(other It) int
	// Equal reports whether both cursors sit on the same position of the
	// same container.
	Equal(other It) bool
	// Less reports whether the receiver precedes other.
	Less(other It) bool
}
