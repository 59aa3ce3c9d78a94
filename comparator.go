// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tapesort drives the external k-way merge sort: it reads
// an input tape in memory-bounded chunks, sorts and materializes
// each chunk as a run on scratch storage, and repeatedly fuses runs
// by k-way merge until one remains, which becomes the output tape.
package tapesort

// Comparator reports whether a should sort before b. It must be a
// strict weak ordering (irreflexive, transitive, and with a
// transitive "incomparability" relation) — the sort is not stable,
// and a non-strict comparator leaves tie-breaking among equal
// elements undefined rather than merely unspecified.
//
// Ascending order is achieved with `func(a, b V) bool { return a < b }`;
// descending order by flipping the operands.
type Comparator[V any] func(a, b V) bool
