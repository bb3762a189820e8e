// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package randutil

import (
	"math/rand"
	"os"
	"strconv"
	"time"
)

// envSeed is consulted by NewTestRand so that a failing randomized test can
// be replayed by exporting the seed it logged.
const envSeed = "CONTAINER_RANDOM_SEED"

// NewTestRand returns an instance of math/rand.Rand seeded from a random
// seed (or from the CONTAINER_RANDOM_SEED environment variable, if set) and
// the seed itself. Tests should log the seed on failure so runs can be
// reproduced.
func NewTestRand() (*rand.Rand, int64) {
	seed := seedFromEnvOrTime()
	return rand.New(rand.NewSource(seed)), seed
}

// NewTestRandWithSeed returns an instance of math/rand.Rand seeded with the
// given seed.
func NewTestRandWithSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// RandIntInRange returns a value in [min, max).
func RandIntInRange(r *rand.Rand, min, max int) int {
	return min + r.Intn(max-min)
}

func seedFromEnvOrTime() int64 {
	if s := os.Getenv(envSeed); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}
