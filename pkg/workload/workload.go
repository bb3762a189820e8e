// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package workload drives randomized push/pop/read mixes against the deque
// implementations and reports per-operation latency distributions. The same
// seed produces the same operation sequence whichever implementation runs
// it, so results (including the value checksum) are comparable between the
// stable deque, the segmented deque, and a slice-backed baseline.
package workload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/container/pkg/alloc"
	"github.com/cockroachdb/container/pkg/util/humanizeutil"
	"github.com/cockroachdb/container/pkg/util/timeutil"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"golang.org/x/exp/rand"
)

// Config parameterizes one workload run.
type Config struct {
	// Workload picks the implementation: stable, segmented, or baseline.
	Workload string
	// Ops is the number of operations to run.
	Ops int
	// ReadFraction is the fraction of operations that read a random index
	// instead of mutating.
	ReadFraction float64
	// PushFrontFraction is the fraction of pushes aimed at the front.
	PushFrontFraction float64
	// SegmentSize and PreallocSegments configure the segmented deque.
	SegmentSize      int
	PreallocSegments int
	// Budget bounds the accounted bytes; 0 means unlimited. The baseline
	// deque has no accounting and rejects a budget.
	Budget int64
	// Seed seeds the op mix; 0 picks a time-based seed.
	Seed uint64
	// PoolSize enables node pooling (stable) or segment pooling (segmented)
	// with that many idle entries.
	PoolSize int
}

func (c Config) validate() error {
	if c.Ops < 0 {
		return errors.Newf("negative op count: %d", c.Ops)
	}
	if c.ReadFraction < 0 || c.ReadFraction > 1 {
		return errors.Newf("read fraction %f outside [0, 1]", c.ReadFraction)
	}
	if c.PushFrontFraction < 0 || c.PushFrontFraction > 1 {
		return errors.Newf("push-front fraction %f outside [0, 1]", c.PushFrontFraction)
	}
	if c.Budget < 0 {
		return errors.Newf("negative budget: %d", c.Budget)
	}
	if c.Budget > 0 && c.Workload == "baseline" {
		return errors.Newf("the baseline workload does not support a budget")
	}
	return nil
}

// Results summarizes a workload run.
type Results struct {
	Ops        int64
	BudgetHits int64
	FinalLen   int
	BytesUsed  int64
	Checksum   int64
	Elapsed    time.Duration
	Summaries  []OpSummary
}

func (r Results) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s ops in %s", humanize.Comma(r.Ops), humanizeutil.Duration(r.Elapsed))
	if r.Elapsed > 0 {
		fmt.Fprintf(&sb, " (%s ops/s)", humanize.Comma(int64(float64(r.Ops)/r.Elapsed.Seconds())))
	}
	fmt.Fprintf(&sb, "\nfinal length %d", r.FinalLen)
	if r.BytesUsed > 0 {
		fmt.Fprintf(&sb, ", %s accounted", humanizeutil.IBytes(r.BytesUsed))
	}
	if r.BudgetHits > 0 {
		fmt.Fprintf(&sb, ", %d budget refusals", r.BudgetHits)
	}
	for _, s := range r.Summaries {
		if s.Count == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%5s: %9s ops  p50=%-8s p95=%-8s p99=%-8s max=%s",
			s.Name, humanize.Comma(s.Count),
			humanizeutil.Duration(s.P50), humanizeutil.Duration(s.P95),
			humanizeutil.Duration(s.P99), humanizeutil.Duration(s.Max))
	}
	return sb.String()
}

// pushBias is the probability that a mutation is a push rather than a pop,
// slightly above one half so deques grow over a run.
const pushBias = 0.55

// Run executes cfg's operation mix and returns the recorded results. A nil
// logger falls back to DefaultLogger.
func Run(ctx context.Context, cfg Config, l Logger) (Results, error) {
	if l == nil {
		l = DefaultLogger
	}
	if err := cfg.validate(); err != nil {
		return Results{}, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(timeutil.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(seed))

	var acc *alloc.Account
	if cfg.Budget > 0 {
		mon := alloc.NewMonitor("workload", cfg.Budget)
		a := mon.MakeAccount()
		acc = &a
	}
	dq, err := newDequer(ctx, cfg, acc)
	if err != nil {
		return Results{}, err
	}
	defer dq.Close(ctx)

	pushH := newHistogram("push")
	popH := newHistogram("pop")
	readH := newHistogram("read")

	l.Infof("starting %s workload: %s ops, seed %d",
		cfg.Workload, humanize.Comma(int64(cfg.Ops)), seed)

	var res Results
	start := timeutil.Now()
	for i := 0; i < cfg.Ops; i++ {
		switch r := rng.Float64(); {
		case r < cfg.ReadFraction && dq.Len() > 0:
			idx := rng.Intn(dq.Len())
			begin := timeutil.Now()
			v := dq.At(idx)
			readH.record(timeutil.Since(begin))
			res.Checksum += v

		case dq.Len() == 0 || rng.Float64() < pushBias:
			v := rng.Int63()
			front := rng.Float64() < cfg.PushFrontFraction
			begin := timeutil.Now()
			var err error
			if front {
				err = dq.PushFront(ctx, v)
			} else {
				err = dq.PushBack(ctx, v)
			}
			pushH.record(timeutil.Since(begin))
			if err != nil {
				if !errors.Is(err, alloc.ErrBudgetExceeded) {
					return Results{}, err
				}
				res.BudgetHits++
				drain(ctx, dq)
			}

		default:
			begin := timeutil.Now()
			var v int64
			var err error
			if rng.Intn(2) == 0 {
				v, err = dq.PopFront(ctx)
			} else {
				v, err = dq.PopBack(ctx)
			}
			popH.record(timeutil.Since(begin))
			if err != nil {
				return Results{}, err
			}
			res.Checksum += v
		}
	}
	res.Elapsed = timeutil.Since(start)
	res.Ops = int64(cfg.Ops)
	res.FinalLen = dq.Len()
	if acc != nil {
		res.BytesUsed = acc.Used()
	}
	res.Summaries = []OpSummary{pushH.summary(), popH.summary(), readH.summary()}

	l.Infof("finished %s workload in %s", cfg.Workload, humanizeutil.Duration(res.Elapsed))
	return res, nil
}

// drain pops an eighth of the deque after a budget refusal so a run against
// a tight budget keeps making progress.
func drain(ctx context.Context, dq dequer) {
	n := dq.Len() / 8
	if n == 0 {
		n = 1
	}
	for j := 0; j < n && dq.Len() > 0; j++ {
		_, _ = dq.PopFront(ctx)
	}
}
