// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package alloc provides the memory capability used by the container
// packages: byte-level budget accounting through Monitor and Account, and a
// typed Allocator through which containers obtain and return their backing
// slices.
//
// The two layers compose. An AccountedAllocator charges every slice it hands
// out to an Account, so a container built on one reports its footprint to a
// budget and fails growth cleanly when the budget is exhausted. A
// PoolingAllocator recycles fixed-size slices above any inner allocator,
// which suits containers that allocate and free equal-sized blocks at a high
// rate.
package alloc

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Allocator hands out and reclaims slices of T. Alloc returns a slice with
// len == cap == n and all slots zero. Free returns a slice previously
// obtained from Alloc; the caller must not retain it afterwards.
//
// Implementations are not required to reuse freed memory, and none of them
// frees eagerly: a HeapAllocator's Free is a no-op that leaves reclamation to
// the garbage collector.
type Allocator[T any] interface {
	Alloc(ctx context.Context, n int) ([]T, error)
	Free(ctx context.Context, s []T)
}

// SliceBytes returns the in-memory size of the backing array of a []T with
// capacity n.
func SliceBytes[T any](n int) int64 {
	var z T
	return int64(unsafe.Sizeof(z)) * int64(n)
}

// HeapAllocator returns the default Allocator: make-backed, never fails, and
// relies on the garbage collector for reclamation.
func HeapAllocator[T any]() Allocator[T] {
	return heapAllocator[T]{}
}

type heapAllocator[T any] struct{}

func (heapAllocator[T]) Alloc(_ context.Context, n int) ([]T, error) {
	if n < 0 {
		return nil, errors.AssertionFailedf("allocating negative length: %d", n)
	}
	return make([]T, n), nil
}

func (heapAllocator[T]) Free(context.Context, []T) {}

// AccountedAllocator returns an Allocator that charges every allocation to
// acc and releases the charge on Free. Alloc fails with the account's budget
// error when the charge does not fit, without allocating.
func AccountedAllocator[T any](acc *Account) Allocator[T] {
	return accountedAllocator[T]{acc: acc}
}

type accountedAllocator[T any] struct {
	acc *Account
}

func (a accountedAllocator[T]) Alloc(ctx context.Context, n int) ([]T, error) {
	if n < 0 {
		return nil, errors.AssertionFailedf("allocating negative length: %d", n)
	}
	if err := a.acc.Grow(ctx, SliceBytes[T](n)); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

func (a accountedAllocator[T]) Free(ctx context.Context, s []T) {
	a.acc.Shrink(ctx, SliceBytes[T](cap(s)))
}
