// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// dequebench runs randomized workloads against the deque implementations in
// this repository and prints latency and memory summaries. Use it to size
// segments, pools, and budgets for a target op mix before wiring a deque
// into a system.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/container/pkg/util/humanizeutil"
	"github.com/cockroachdb/container/pkg/workload"
	"github.com/spf13/cobra"
)

func makeDequebenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dequebench [command] (flags)",
		Short: "dequebench runs randomized workloads against the deque implementations.",
		Long: `dequebench runs randomized push/pop/read workloads against the stable deque,
the segmented deque, or a slice-backed baseline deque, and prints latency
and memory summaries. Runs with the same seed perform the same operation
sequence whichever implementation is underneath, so results are comparable.

Typical usage:
    dequebench run segmented --ops=1000000 --segment-size=64 --pool-size=8
        Benchmark the segmented deque with pooled segments.

    dequebench run stable --budget=64MiB
        Benchmark the stable deque against a 64 MiB memory budget.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(makeRunCommand())
	return cmd
}

func makeRunCommand() *cobra.Command {
	cfg := workload.Config{
		Ops:               1000000,
		ReadFraction:      0.25,
		PushFrontFraction: 0.5,
		SegmentSize:       64,
	}
	cmd := &cobra.Command{
		Use:   "run <workload>",
		Short: "Run a workload against one implementation: stable, segmented, or baseline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Workload = args[0]
			res, err := workload.Run(context.Background(), cfg, workload.DefaultLogger)
			if err != nil {
				return err
			}
			fmt.Println(res)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Ops, "ops", cfg.Ops, "number of operations to run")
	cmd.Flags().Float64Var(&cfg.ReadFraction, "read-fraction", cfg.ReadFraction, "fraction of ops that read a random index")
	cmd.Flags().Float64Var(&cfg.PushFrontFraction, "push-front-fraction", cfg.PushFrontFraction, "fraction of pushes aimed at the front")
	cmd.Flags().IntVar(&cfg.SegmentSize, "segment-size", cfg.SegmentSize, "segment size for the segmented workload")
	cmd.Flags().IntVar(&cfg.PreallocSegments, "prealloc-segments", cfg.PreallocSegments, "spare segments to preallocate for the segmented workload")
	cmd.Flags().IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "idle nodes (stable) or segments (segmented) to keep for reuse")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "workload seed; 0 picks a time-based seed")
	cmd.Flags().Var(humanizeutil.NewBytesValue(&cfg.Budget), "budget", "memory budget, e.g. 64MiB; 0 means unlimited")
	return cmd
}

func main() {
	if err := makeDequebenchCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
