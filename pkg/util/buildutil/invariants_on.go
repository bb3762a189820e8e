// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

//go:build invariants || race
// +build invariants race

package buildutil

// Invariants is enabled when built with the invariants or race build tags.
// It turns on expensive consistency checks in the container packages: full
// structural validation after mutations, and out-of-range assertions on
// cursor misuse that is otherwise left undefined.
const Invariants = true
