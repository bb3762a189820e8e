// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package alloc

import (
	"context"
	"math"

	"github.com/cockroachdb/container/pkg/util/buildutil"
	"github.com/cockroachdb/container/pkg/util/humanizeutil"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// ErrBudgetExceeded is the mark carried by errors returned when an Account
// cannot grow because its Monitor's budget is exhausted. Detect it with
// errors.Is.
var ErrBudgetExceeded = errors.New("memory budget exceeded")

// Monitor tracks the memory held by a group of Accounts against a fixed
// budget. It is the top of an accounting hierarchy of exactly two levels:
// a Monitor with a limit, and any number of Accounts charging against it.
//
// Like the containers it serves, a Monitor performs no internal
// synchronization; a single logical owner grows and shrinks its accounts.
type Monitor struct {
	name      string
	limit     int64
	allocated int64
}

// NewMonitor creates a Monitor with the given name and budget, in bytes.
// The name appears in budget errors and log output.
func NewMonitor(name string, limit int64) *Monitor {
	if limit < 0 {
		panic(errors.AssertionFailedf("negative monitor limit: %d", limit))
	}
	return &Monitor{name: name, limit: limit}
}

// NewUnlimitedMonitor creates a Monitor that never refuses growth. It still
// tracks usage, which makes leak assertions in tests possible.
func NewUnlimitedMonitor(name string) *Monitor {
	return &Monitor{name: name, limit: math.MaxInt64}
}

// Name returns the name the monitor was created with.
func (m *Monitor) Name() string { return m.name }

// Limit returns the monitor's budget in bytes.
func (m *Monitor) Limit() int64 { return m.limit }

// Allocated returns the total bytes currently drawn from the monitor by all
// of its accounts.
func (m *Monitor) Allocated() int64 { return m.allocated }

// MakeAccount creates an Account charging against m. The zero Account is not
// usable; accounts must come from a monitor.
func (m *Monitor) MakeAccount() Account {
	return Account{mon: m}
}

func (m *Monitor) reserve(n int64) error {
	if m.allocated+n > m.limit {
		return errors.Mark(errors.Errorf(
			"%s: memory budget exceeded: %s requested, %s currently allocated, %s in budget",
			m.name, humanizeutil.IBytes(n), humanizeutil.IBytes(m.allocated),
			humanizeutil.IBytes(m.limit)), ErrBudgetExceeded)
	}
	m.allocated += n
	return nil
}

func (m *Monitor) release(n int64) {
	m.allocated -= n
	if m.allocated < 0 {
		if buildutil.Invariants {
			panic(errors.AssertionFailedf(
				"%s: monitor released more than it allocated", m.name))
		}
		m.allocated = 0
	}
}

// String returns a printable summary of the monitor.
func (m *Monitor) String() string { return redact.StringWithoutMarkers(m) }

// SafeFormat implements redact.SafeFormatter.
func (m *Monitor) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s: %s used", redact.SafeString(m.name),
		redact.SafeString(humanizeutil.IBytes(m.allocated)))
	if m.limit != math.MaxInt64 {
		w.Printf(" (of %s)", redact.SafeString(humanizeutil.IBytes(m.limit)))
	}
}

// Account tracks one consumer's share of a Monitor's budget. It is a value
// type; embed it (or keep a pointer to it) and pass &acc around. All methods
// take a Context for symmetry with the blocking call sites that thread
// cancellation; none of them blocks.
type Account struct {
	mon  *Monitor
	used int64
}

// Grow charges n further bytes to the account. On budget exhaustion it
// returns an error marked with ErrBudgetExceeded and leaves the account
// unchanged.
func (a *Account) Grow(ctx context.Context, n int64) error {
	if n < 0 {
		panic(errors.AssertionFailedf("negative account growth: %d", n))
	}
	if err := a.mon.reserve(n); err != nil {
		return err
	}
	a.used += n
	return nil
}

// Shrink releases n bytes from the account. Releasing more than the account
// holds is a programmer error; checked builds panic, production builds clamp.
func (a *Account) Shrink(ctx context.Context, n int64) {
	if n < 0 {
		panic(errors.AssertionFailedf("negative account shrink: %d", n))
	}
	if n > a.used {
		if buildutil.Invariants {
			panic(errors.AssertionFailedf(
				"%s: account shrunk by %d below its %d bytes", a.mon.name, n, a.used))
		}
		n = a.used
	}
	a.mon.release(n)
	a.used -= n
}

// Clear releases everything the account holds. The account remains usable.
func (a *Account) Clear(ctx context.Context) {
	a.Shrink(ctx, a.used)
}

// Close releases everything the account holds. The account must not be used
// afterwards.
func (a *Account) Close(ctx context.Context) {
	a.Clear(ctx)
	a.mon = nil
}

// Used returns the bytes currently charged to the account.
func (a *Account) Used() int64 { return a.used }

// Monitor returns the monitor the account draws from.
func (a *Account) Monitor() *Monitor { return a.mon }
