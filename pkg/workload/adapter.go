// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package workload

import (
	"context"

	"github.com/cockroachdb/container/pkg/alloc"
	"github.com/cockroachdb/container/pkg/deque"
	"github.com/cockroachdb/container/pkg/deque/segmented"
	"github.com/cockroachdb/container/pkg/deque/stable"
	"github.com/cockroachdb/errors"
	gdeque "github.com/gammazero/deque"
)

// dequer is the deque surface the workload drives. All three adapters give
// the same observable behavior, which is what makes run results comparable
// across implementations.
type dequer interface {
	PushFront(ctx context.Context, v int64) error
	PushBack(ctx context.Context, v int64) error
	PopFront(ctx context.Context) (int64, error)
	PopBack(ctx context.Context) (int64, error)
	At(i int) int64
	Len() int
	Close(ctx context.Context)
}

func newDequer(ctx context.Context, cfg Config, acc *alloc.Account) (dequer, error) {
	switch cfg.Workload {
	case "stable":
		var opts []stable.Option[int64]
		if acc != nil {
			opts = append(opts, stable.WithAccount[int64](acc))
		}
		if cfg.PoolSize > 0 {
			opts = append(opts, stable.WithNodePool[int64](cfg.PoolSize))
		}
		d, err := stable.New[int64](opts...)
		if err != nil {
			return nil, err
		}
		return stableAdapter{d: d}, nil

	case "segmented":
		var opts []segmented.Option[int64]
		if acc != nil {
			opts = append(opts, segmented.WithAccount[int64](acc))
		}
		if cfg.PoolSize > 0 {
			inner := alloc.HeapAllocator[int64]()
			if acc != nil {
				inner = alloc.AccountedAllocator[int64](acc)
			}
			opts = append(opts,
				segmented.WithAllocator[int64](alloc.NewPoolingAllocator(inner, cfg.PoolSize)))
		}
		d, err := segmented.New[int64](ctx, cfg.SegmentSize, cfg.PreallocSegments, opts...)
		if err != nil {
			return nil, err
		}
		return segmentedAdapter{d: d}, nil

	case "baseline":
		return &baselineAdapter{d: gdeque.New[int64]()}, nil

	default:
		return nil, errors.Newf("unknown workload %q", cfg.Workload)
	}
}

type stableAdapter struct {
	d *stable.Deque[int64]
}

func (a stableAdapter) PushFront(ctx context.Context, v int64) error {
	_, err := a.d.PushFront(ctx, v)
	return err
}

func (a stableAdapter) PushBack(ctx context.Context, v int64) error {
	_, err := a.d.PushBack(ctx, v)
	return err
}

func (a stableAdapter) PopFront(ctx context.Context) (int64, error) { return a.d.PopFront(ctx) }
func (a stableAdapter) PopBack(ctx context.Context) (int64, error)  { return a.d.PopBack(ctx) }
func (a stableAdapter) At(i int) int64                              { return a.d.At(i) }
func (a stableAdapter) Len() int                                    { return a.d.Len() }
func (a stableAdapter) Close(ctx context.Context)                   { a.d.Close(ctx) }

type segmentedAdapter struct {
	d *segmented.Deque[int64]
}

func (a segmentedAdapter) PushFront(ctx context.Context, v int64) error { return a.d.PushFront(ctx, v) }
func (a segmentedAdapter) PushBack(ctx context.Context, v int64) error  { return a.d.PushBack(ctx, v) }
func (a segmentedAdapter) PopFront(ctx context.Context) (int64, error)  { return a.d.PopFront(ctx) }
func (a segmentedAdapter) PopBack(ctx context.Context) (int64, error)   { return a.d.PopBack(ctx) }
func (a segmentedAdapter) At(i int) int64                               { return a.d.At(i) }
func (a segmentedAdapter) Len() int                                     { return a.d.Len() }
func (a segmentedAdapter) Close(ctx context.Context)                    { a.d.Close(ctx) }

// baselineAdapter wraps the slice-backed ring deque the comparison runs
// against. It has no accounting and cannot fail.
type baselineAdapter struct {
	d *gdeque.Deque[int64]
}

func (a *baselineAdapter) PushFront(_ context.Context, v int64) error {
	a.d.PushFront(v)
	return nil
}

func (a *baselineAdapter) PushBack(_ context.Context, v int64) error {
	a.d.PushBack(v)
	return nil
}

func (a *baselineAdapter) PopFront(context.Context) (int64, error) {
	if a.d.Len() == 0 {
		return 0, deque.ErrEmpty
	}
	return a.d.PopFront(), nil
}

func (a *baselineAdapter) PopBack(context.Context) (int64, error) {
	if a.d.Len() == 0 {
		return 0, deque.ErrEmpty
	}
	return a.d.PopBack(), nil
}

func (a *baselineAdapter) At(i int) int64        { return a.d.At(i) }
func (a *baselineAdapter) Len() int              { return a.d.Len() }
func (a *baselineAdapter) Close(context.Context) {}
