// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package segmented

import (
	"context"
	"testing"

	"github.com/cockroachdb/container/pkg/util/buildutil"
	"github.com/cockroachdb/container/pkg/util/randutil"
	"github.com/stretchr/testify/require"
)

// fill builds a deque holding 0..n-1 using pushes at both ends, so the first
// and last segments end up partial for most segment sizes.
func fill(t *testing.T, ctx context.Context, segSize, n int) *Deque[int] {
	t.Helper()
	d, err := New[int](ctx, segSize, 0)
	require.NoError(t, err)
	mid := n / 2
	for i := mid - 1; i >= 0; i-- {
		require.NoError(t, d.PushFront(ctx, i))
	}
	for i := mid; i < n; i++ {
		require.NoError(t, d.PushBack(ctx, i))
	}
	return d
}

func TestIteratorEquivalence(t *testing.T) {
	ctx := context.Background()
	rng, _ := randutil.NewTestRand()
	for _, segSize := range []int{1, 2, 3, 7, 16} {
		n := 1 + rng.Intn(100)
		d := fill(t, ctx, segSize, n)

		// Flat walk through the composed cursor.
		var flat []*int
		for it := d.Begin(); !it.Equal(d.End()); it = it.Next() {
			flat = append(flat, it.Deref())
		}

		// Nested walk: segments, then slots within each segment.
		var nested []*int
		for s := d.SegmentBegin(); !s.Equal(d.SegmentEnd()); s = s.Next() {
			for l := s.Begin(); !l.Equal(s.End()); l = l.Next() {
				nested = append(nested, l.Deref())
			}
		}

		// Block walk: each segment's live run as one contiguous slice.
		var blocks []*int
		for s := d.SegmentBegin(); !s.Equal(d.SegmentEnd()); s = s.Next() {
			run := s.Begin().Slice(s.End())
			for i := range run {
				blocks = append(blocks, &run[i])
			}
		}

		require.Len(t, flat, n)
		require.Len(t, nested, n)
		require.Len(t, blocks, n)
		for i := 0; i < n; i++ {
			require.Same(t, flat[i], nested[i])
			require.Same(t, flat[i], blocks[i])
			require.Equal(t, i, *flat[i])
			require.Same(t, flat[i], d.RefAt(i))
		}
		d.Close(ctx)
	}
}

func TestIteratorRandomAccess(t *testing.T) {
	ctx := context.Background()
	d := fill(t, ctx, 4, 26)
	defer d.Close(ctx)

	b := d.Begin()
	e := d.End()
	require.Equal(t, 26, b.Distance(e))
	require.Equal(t, -26, e.Distance(b))
	require.True(t, b.Less(e))

	for i := 0; i < 26; i++ {
		it := b.Offset(i)
		require.Equal(t, i, *it.Deref())
		require.Equal(t, i, b.Distance(it))
		require.True(t, it.Equal(e.Offset(i-26)))
	}
	require.True(t, b.Offset(26).Equal(e))
	require.Equal(t, 25, *e.Prev().Deref())
	require.True(t, e.Prev().Next().Equal(e))

	// Stepping across a segment boundary: the cursor on a segment's last
	// live slot advances to the next segment's first live slot.
	it := b
	for i := 0; i < 25; i++ {
		next := it.Next()
		require.Equal(t, 1, it.Distance(next))
		if next.Segment().Equal(it.Segment().Next()) {
			require.Zero(t, next.Local().Index())
		}
		it = next
	}
}

func TestIteratorLevels(t *testing.T) {
	ctx := context.Background()
	d := fill(t, ctx, 5, 23)
	defer d.Close(ctx)

	// Segment cursor distances add up to the live segment count.
	require.Equal(t, d.SegmentCount(),
		d.SegmentBegin().Distance(d.SegmentEnd()))

	// Per-segment live runs sum to the deque's length, and only the first
	// and last segments may be partial.
	total := 0
	idx := 0
	for s := d.SegmentBegin(); !s.Equal(d.SegmentEnd()); s = s.Next() {
		run := s.Begin().Distance(s.End())
		require.Positive(t, run)
		if idx != 0 && idx != d.SegmentCount()-1 {
			require.Equal(t, d.SegmentSize(), run)
		}
		total += run
		idx++
	}
	require.Equal(t, d.Len(), total)

	// A composed cursor decomposes into its segment and local parts.
	it := d.Begin().Offset(13)
	require.Same(t, it.Deref(), it.Local().Deref())
	seg := it.Segment()
	require.False(t, it.Local().Less(seg.Begin()))
	require.True(t, it.Local().Less(seg.End()))
}

func TestIteratorEmpty(t *testing.T) {
	ctx := context.Background()
	d, err := New[int](ctx, 4, 2)
	require.NoError(t, err)
	defer d.Close(ctx)

	require.True(t, d.Begin().Equal(d.End()))
	require.True(t, d.SegmentBegin().Equal(d.SegmentEnd()))
	require.Zero(t, d.Begin().Distance(d.End()))

	// Push then drain: empty again.
	require.NoError(t, d.PushBack(ctx, 1))
	require.False(t, d.Begin().Equal(d.End()))
	_, err = d.PopFront(ctx)
	require.NoError(t, err)
	require.True(t, d.Begin().Equal(d.End()))
}

func TestIteratorMisuse(t *testing.T) {
	if !buildutil.Invariants {
		t.Skip("misuse detection needs the invariants or race build tag")
	}
	ctx := context.Background()
	d := fill(t, ctx, 3, 7)
	defer d.Close(ctx)

	require.Panics(t, func() { d.End().Deref() })
	require.Panics(t, func() { d.Begin().Prev() })
	require.Panics(t, func() { d.End().Next() })
	require.Panics(t, func() { d.Begin().Offset(8) })
	require.Panics(t, func() { d.SegmentEnd().Deref() })
	require.Panics(t, func() { d.SegmentBegin().Prev() })

	// Local cursors must not walk off their segment.
	s := d.SegmentBegin().Next()
	require.Panics(t, func() { s.Begin().Offset(d.SegmentSize() + 1) })
	require.Panics(t, func() { s.Begin().Prev() })

	// Ordering cursors from different segments or deques is misuse.
	s2 := s.Next()
	require.Panics(t, func() { s.Begin().Less(s2.Begin()) })
	d2 := fill(t, ctx, 3, 7)
	defer d2.Close(ctx)
	require.Panics(t, func() { d.Begin().Distance(d2.Begin()) })
	require.False(t, d.Begin().Equal(d2.Begin()))
}
