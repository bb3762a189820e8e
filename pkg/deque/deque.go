// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package deque holds the contract shared by the double-ended container
// implementations in its subpackages.
//
// Two containers implement it, with different storage trade-offs:
//
//   - stable.Deque (pkg/deque/stable) stores each element in its own node and
//     keeps a movable window of node pointers. The address of an element never
//     changes for as long as the element is in the container, across any
//     sequence of pushes, pops, and reservations at either end. Use it when
//     code keeps long-lived pointers into the container.
//
//   - segmented.Deque (pkg/deque/segmented) stores elements in fixed-size
//     segments and exposes the segmentation through a three-level cursor
//     hierarchy, so block-at-a-time algorithms can work on whole segments.
//     Elements are contiguous within a segment; addresses are stable except
//     for the element's own removal, since segments never relocate.
//
// Both containers are single-owner values with no internal synchronization,
// and both take their memory through the pkg/alloc capability so callers can
// bound and observe their footprint.
package deque

import "github.com/cockroachdb/errors"

// ErrEmpty is returned by Pop and peek operations on an empty container.
// Errors wrapping it are detectable with errors.Is.
var ErrEmpty = errors.New("empty deque")
