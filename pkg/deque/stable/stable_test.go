// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stable

import (
	"context"
	"testing"

	"github.com/cockroachdb/container/pkg/alloc"
	"github.com/cockroachdb/container/pkg/deque"
	"github.com/cockroachdb/container/pkg/util/randutil"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireModel checks the deque against a plain slice holding the expected
// contents front to back.
func requireModel(t *testing.T, d *Deque[int], model []int) {
	t.Helper()
	d.checkInvariants()
	require.Equal(t, len(model), d.Len())
	for i, want := range model {
		require.Equal(t, want, d.At(i))
	}
	if len(model) > 0 {
		front, err := d.Front()
		require.NoError(t, err)
		require.Equal(t, model[0], front)
		back, err := d.Back()
		require.NoError(t, err)
		require.Equal(t, model[len(model)-1], back)
	}
}

func TestDequeBasic(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	require.Zero(t, d.Len())
	_, err = d.Front()
	require.True(t, errors.Is(err, deque.ErrEmpty))
	_, err = d.Back()
	require.True(t, errors.Is(err, deque.ErrEmpty))
	_, err = d.PopFront(ctx)
	require.True(t, errors.Is(err, deque.ErrEmpty))
	_, err = d.PopBack(ctx)
	require.True(t, errors.Is(err, deque.ErrEmpty))

	// Interleave pushes at both ends: front pushes prepend.
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			_, err = d.PushBack(ctx, i)
		} else {
			_, err = d.PushFront(ctx, i)
		}
		require.NoError(t, err)
	}
	requireModel(t, d, []int{9, 7, 5, 3, 1, 0, 2, 4, 6, 8})

	v, err := d.PopFront(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, v)
	v, err = d.PopBack(ctx)
	require.NoError(t, err)
	require.Equal(t, 8, v)
	requireModel(t, d, []int{7, 5, 3, 1, 0, 2, 4, 6})
}

func TestAddressStability(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	rng, _ := randutil.NewTestRand()
	refs := make(map[*int]int)
	for i := 0; i < 1000; i++ {
		var p *int
		if rng.Intn(2) == 0 {
			p, err = d.PushBack(ctx, i)
		} else {
			p, err = d.PushFront(ctx, i)
		}
		require.NoError(t, err)
		require.Equal(t, i, *p)
		refs[p] = i
	}
	// The index buffer reallocated many times getting to 1000 elements; every
	// address handed out along the way must still hold its element.
	require.Greater(t, d.Cap(), 1000)
	for p, want := range refs {
		require.Equal(t, want, *p)
	}
	// Writes through stored addresses land in the deque.
	p := d.RefAt(17)
	*p = -1
	require.Equal(t, -1, d.At(17))
}

func TestPopFrontKeepsBackAddress(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	for i := 0; i < 3; i++ {
		_, err = d.PushBack(ctx, i)
		require.NoError(t, err)
	}
	last := d.RefAt(2)
	v, err := d.PopFront(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, v)
	requireModel(t, d, []int{1, 2})
	require.Same(t, last, d.RefAt(1))
	require.Equal(t, 2, *last)
}

func TestReserveSplit(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	// Half in front rounded down, the rest in back.
	require.NoError(t, d.Reserve(ctx, 7))
	require.Equal(t, 3, d.FrontSlack())
	require.Equal(t, 4, d.BackSlack())
	require.Equal(t, 7, d.Cap())

	// The reservation absorbs exactly that many pushes per end with no
	// further reallocation.
	var refs []*int
	for i := 0; i < 3; i++ {
		p, err := d.PushFront(ctx, -i)
		require.NoError(t, err)
		refs = append(refs, p)
	}
	for i := 0; i < 4; i++ {
		p, err := d.PushBack(ctx, i)
		require.NoError(t, err)
		refs = append(refs, p)
	}
	require.Equal(t, 7, d.Cap())
	require.Zero(t, d.FrontSlack())
	require.Zero(t, d.BackSlack())
	requireModel(t, d, []int{-2, -1, 0, 0, 1, 2, 3})
	require.Equal(t, -2, *refs[2])
}

func TestReserveEnds(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	require.NoError(t, d.ReserveFront(ctx, 10))
	require.Equal(t, 10, d.FrontSlack())
	require.Zero(t, d.BackSlack())

	// Reserving the back must not reduce the front slack.
	require.NoError(t, d.ReserveBack(ctx, 5))
	require.Equal(t, 10, d.FrontSlack())
	require.Equal(t, 5, d.BackSlack())
	require.Equal(t, 15, d.Cap())

	// Already-satisfied reservations reallocate nothing.
	require.NoError(t, d.ReserveFront(ctx, 4))
	require.NoError(t, d.Reserve(ctx, 8))
	require.Equal(t, 15, d.Cap())

	require.Error(t, d.Reserve(ctx, -1))
	require.Error(t, d.ReserveBack(ctx, -1))
}

func TestShrinkToFit(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	for i := 0; i < 20; i++ {
		_, err = d.PushBack(ctx, i)
		require.NoError(t, err)
	}
	for i := 0; i < 15; i++ {
		_, err = d.PopFront(ctx)
		require.NoError(t, err)
	}
	require.Greater(t, d.Cap(), d.Len())

	p := d.RefAt(0)
	require.NoError(t, d.ShrinkToFit(ctx))
	require.Equal(t, 5, d.Cap())
	require.Zero(t, d.FrontSlack())
	require.Zero(t, d.BackSlack())
	requireModel(t, d, []int{15, 16, 17, 18, 19})
	// Shrinking moves pointers, not nodes.
	require.Same(t, p, d.RefAt(0))

	require.NoError(t, d.ShrinkToFit(ctx)) // no-op when exact

	d.Clear(ctx)
	require.NoError(t, d.ShrinkToFit(ctx))
	require.Zero(t, d.Cap())
}

func TestClearKeepsCapacity(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	for i := 0; i < 16; i++ {
		_, err = d.PushBack(ctx, i)
		require.NoError(t, err)
	}
	capBefore := d.Cap()
	d.Clear(ctx)
	require.Zero(t, d.Len())
	require.Equal(t, capBefore, d.Cap())
	_, err = d.PushBack(ctx, 1)
	require.NoError(t, err)
	requireModel(t, d, []int{1})
}

func TestAccounting(t *testing.T) {
	ctx := context.Background()
	mon := alloc.NewUnlimitedMonitor("stable-test")
	acc := mon.MakeAccount()
	d, err := New[int64](WithAccount[int64](&acc))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		_, err = d.PushBack(ctx, int64(i))
		require.NoError(t, err)
	}
	require.Equal(t,
		alloc.SliceBytes[*node[int64]](d.Cap())+100*nodeBytes[int64](),
		acc.Used())

	for i := 0; i < 40; i++ {
		_, err = d.PopFront(ctx)
		require.NoError(t, err)
	}
	require.Equal(t,
		alloc.SliceBytes[*node[int64]](d.Cap())+60*nodeBytes[int64](),
		acc.Used())

	d.Close(ctx)
	require.Zero(t, acc.Used())
	acc.Close(ctx)
	require.Zero(t, mon.Allocated())
}

func TestBudgetExceeded(t *testing.T) {
	ctx := context.Background()
	// Room for the 4-slot index buffer, its predecessors' peak, and a few
	// nodes, but not for the growth to 8 slots.
	budget := alloc.SliceBytes[*node[int]](4+2) + 4*nodeBytes[int]()
	mon := alloc.NewMonitor("small", budget)
	acc := mon.MakeAccount()
	d, err := New[int](WithAccount[int](&acc))
	require.NoError(t, err)
	defer func() {
		d.Close(ctx)
		require.Zero(t, acc.Used())
	}()

	var n int
	for ; n < 100; n++ {
		if _, err = d.PushBack(ctx, n); err != nil {
			break
		}
	}
	require.True(t, errors.Is(err, alloc.ErrBudgetExceeded))
	require.Contains(t, err.Error(), "small")
	require.Equal(t, 4, n)

	// The failed push left the deque fully usable and unchanged.
	requireModel(t, d, []int{0, 1, 2, 3})

	// Popping frees budget; pushing at the freed end fits again.
	_, err = d.PopFront(ctx)
	require.NoError(t, err)
	_, err = d.PushFront(ctx, -1)
	require.NoError(t, err)
	requireModel(t, d, []int{-1, 1, 2, 3})
}

func TestNodePool(t *testing.T) {
	ctx := context.Background()
	mon := alloc.NewUnlimitedMonitor("pool-test")
	acc := mon.MakeAccount()
	d, err := New[int](WithAccount[int](&acc), WithNodePool[int](8))
	require.NoError(t, err)
	defer d.Close(ctx)

	require.NoError(t, d.ReserveBack(ctx, 8))
	for i := 0; i < 8; i++ {
		_, err = d.PushBack(ctx, i)
		require.NoError(t, err)
	}
	used := acc.Used()
	for i := 0; i < 8; i++ {
		_, err = d.PopBack(ctx)
		require.NoError(t, err)
	}
	// Destroyed nodes parked on the freelist stay charged.
	require.Equal(t, used, acc.Used())
	require.Len(t, d.pool, 8)

	// Refilling consumes the freelist without new node charges.
	for i := 0; i < 8; i++ {
		_, err = d.PushBack(ctx, i)
		require.NoError(t, err)
	}
	require.Equal(t, used, acc.Used())
	require.Empty(t, d.pool)

	d.Clear(ctx)
	require.NoError(t, d.ShrinkToFit(ctx))
	require.Empty(t, d.pool)
}

func TestOptionValidation(t *testing.T) {
	d, err := New[int](WithNodePool[int](-1))
	require.Error(t, err)
	require.Nil(t, d)
}

func TestIndexPanics(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)
	_, err = d.PushBack(ctx, 1)
	require.NoError(t, err)

	require.Panics(t, func() { d.At(1) })
	require.Panics(t, func() { d.At(-1) })
	require.Panics(t, func() { d.RefAt(2) })
}

func TestStringFormat(t *testing.T) {
	ctx := context.Background()
	d, err := New[int]()
	require.NoError(t, err)
	defer d.Close(ctx)

	require.NoError(t, d.ReserveFront(ctx, 2))
	require.NoError(t, d.ReserveBack(ctx, 3))
	_, err = d.PushBack(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "stable.Deque{len=1 cap=5 slack=2+2}", d.String())
}

func TestRandomOps(t *testing.T) {
	ctx := context.Background()
	rng, _ := randutil.NewTestRand()

	mon := alloc.NewUnlimitedMonitor("random-ops")
	acc := mon.MakeAccount()
	d, err := New[int](WithAccount[int](&acc), WithNodePool[int](rng.Intn(8)))
	require.NoError(t, err)

	var model []int
	next := 0
	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(20); {
		case op < 7:
			_, err := d.PushBack(ctx, next)
			require.NoError(t, err)
			model = append(model, next)
			next++
		case op < 14:
			_, err := d.PushFront(ctx, next)
			require.NoError(t, err)
			model = append([]int{next}, model...)
			next++
		case op < 16:
			v, err := d.PopFront(ctx)
			if len(model) == 0 {
				require.True(t, errors.Is(err, deque.ErrEmpty))
			} else {
				require.NoError(t, err)
				require.Equal(t, model[0], v)
				model = model[1:]
			}
		case op < 18:
			v, err := d.PopBack(ctx)
			if len(model) == 0 {
				require.True(t, errors.Is(err, deque.ErrEmpty))
			} else {
				require.NoError(t, err)
				require.Equal(t, model[len(model)-1], v)
				model = model[:len(model)-1]
			}
		case op == 18:
			require.NoError(t, d.Reserve(ctx, rng.Intn(32)))
		default:
			if rng.Intn(10) == 0 {
				require.NoError(t, d.ShrinkToFit(ctx))
			}
		}
		d.checkInvariants()
		assert.Equal(t, len(model), d.Len())
		if step%97 == 0 {
			requireModel(t, d, model)
		}
	}
	requireModel(t, d, model)

	d.Close(ctx)
	require.Zero(t, acc.Used())
}

func BenchmarkPushBack(b *testing.B) {
	ctx := context.Background()
	d, _ := New[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.PushBack(ctx, i)
	}
}

func BenchmarkPushPopPooled(b *testing.B) {
	for _, pooled := range []bool{false, true} {
		name := "pool=off"
		if pooled {
			name = "pool=on"
		}
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			poolSize := 0
			if pooled {
				poolSize = 64
			}
			d, _ := New[int](WithNodePool[int](poolSize))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = d.PushBack(ctx, i)
				if d.Len() > 64 {
					_, _ = d.PopFront(ctx)
				}
			}
		})
	}
}

func BenchmarkRefAt(b *testing.B) {
	ctx := context.Background()
	d, _ := New[int]()
	for i := 0; i < 1024; i++ {
		_, _ = d.PushBack(ctx, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d.RefAt(i & 1023)
	}
}
