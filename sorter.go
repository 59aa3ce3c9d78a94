// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tapesort

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"

	"github.com/stolex1y/sorting-on-tape/config"
	"github.com/stolex1y/sorting-on-tape/scratch"
	"github.com/stolex1y/sorting-on-tape/tape"
)

// Sorter is the driver that produces initial runs, submits merge
// tasks, and finalizes the output of one external sort. A Sorter is
// immutable after construction and may be reused for multiple Sort
// calls; each call builds its own private Sort Context (pool, run
// queue, and R), so concurrent Sort calls on the same Sorter are
// independent as long as they use distinct scratch providers.
type Sorter[V any] struct {
	cmp      Comparator[V]
	provider *scratch.Provider[V]

	memoryLimit     int // M: the memory budget, in records.
	perThreadBudget int // T: records one task may hold live.
	maxThreads      int // P: worker pool ceiling.
	fanIn           int // K: merge fan-in.
}

// NewSorter derives capacity limits from cfg and returns a Sorter
// that sorts records per cmp, using provider for scratch tapes.
// recordSize is sizeof(V) in bytes, used to translate the configured
// byte-denominated memory budget into a record count.
//
// NewSorter fails with an InvalidConfig-kind error (before any I/O
// is performed) if the memory budget is too small to hold at least 4
// records, or if the configured merge fan-in would leave a
// participating tape with less than one record of block buffer.
func NewSorter[V any](cfg *config.Config, recordSize int, provider *scratch.Provider[V], cmp Comparator[V]) (*Sorter[V], error) {
	if recordSize <= 0 {
		return nil, errors.E(errors.Invalid, "tapesort: recordSize must be positive")
	}

	memoryLimitBytes := cfg.GetUint64(config.MemoryLimitKey, config.DefaultMemoryLimit)
	m := int(memoryLimitBytes) / recordSize
	if m < 4 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"tapesort: memory_limit too small: need at least %d bytes, got %d", recordSize*4, memoryLimitBytes))
	}

	k := int(cfg.GetUint64(config.MaxMergingGroupSizeKey, config.DefaultMaxMergingGroupSize))
	if k < 2 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("tapesort: max_merging_group_size must be >= 2, got %d", k))
	}

	maxValuesPerThread := int(cfg.GetUint64(config.MaxValueCountPerThreadKey, config.DefaultMaxValueCountPerThread))
	t := maxValuesPerThread
	if m < t {
		t = m
	}
	if t/(k+1) < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"tapesort: can't merge %d runs in one task: increase memory_limit to at least %d bytes and max_value_count_per_thread to at least %d",
			k, (k+1)*recordSize, k+1))
	}

	maxThreads := int(cfg.GetUint64(config.MaxThreadCountKey, uint64(defaultMaxThreadCount())))
	p := m / t
	if maxThreads < p {
		p = maxThreads
	}
	if p < 1 {
		p = 1
	}

	return &Sorter[V]{
		cmp:             cmp,
		provider:        provider,
		memoryLimit:     m,
		perThreadBudget: t,
		maxThreads:      p,
		fanIn:           k,
	}, nil
}

// Sort reads input in full, sorts it per the Sorter's comparator,
// and writes the result to output, leaving output's head at the
// start. It builds a fresh Sort Context for the duration of the
// call and tears it down before returning — the pool is never
// destroyed while work is outstanding.
func (s *Sorter[V]) Sort(ctx context.Context, input, output tape.Tape[V]) error {
	sc := newSortContext(ctx, s)
	defer sc.close()

	sc.produceRuns(input)
	if err := sc.mergeUntilOne(); err != nil {
		// sc.Err() holds the task failure that caused the cancellation
		// err itself reports; prefer that root cause over the
		// incidental context.Canceled.
		return firstNonNil(sc.Err(), err)
	}
	return firstNonNil(sc.Err(), sc.finalize(output))
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

