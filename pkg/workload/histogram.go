// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package workload

import (
	"time"

	"github.com/codahale/hdrhistogram"
)

const (
	sigFigs    = 1
	minLatency = 100 * time.Nanosecond
	maxLatency = 10 * time.Second
)

// namedHistogram records latencies for one operation class in an HDR
// histogram with a fixed window.
type namedHistogram struct {
	name string
	h    *hdrhistogram.Histogram
}

func newHistogram(name string) *namedHistogram {
	return &namedHistogram{
		name: name,
		h:    hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), sigFigs),
	}
}

// record clamps the latency into the histogram's range and records it.
func (h *namedHistogram) record(elapsed time.Duration) {
	if elapsed < minLatency {
		elapsed = minLatency
	} else if elapsed > maxLatency {
		elapsed = maxLatency
	}
	_ = h.h.RecordValue(elapsed.Nanoseconds())
}

func (h *namedHistogram) summary() OpSummary {
	return OpSummary{
		Name:  h.name,
		Count: h.h.TotalCount(),
		P50:   time.Duration(h.h.ValueAtQuantile(50)),
		P95:   time.Duration(h.h.ValueAtQuantile(95)),
		P99:   time.Duration(h.h.ValueAtQuantile(99)),
		Max:   time.Duration(h.h.Max()),
	}
}

// OpSummary is the recorded latency distribution of one operation class.
type OpSummary struct {
	Name  string
	Count int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}
