// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tapesort

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/stolex1y/sorting-on-tape/blockio"
	"github.com/stolex1y/sorting-on-tape/runqueue"
	"github.com/stolex1y/sorting-on-tape/tape"
	"github.com/stolex1y/sorting-on-tape/workpool"
)

// sortContext is the per-invocation state described in spec §3: a
// worker pool, a run queue, and the outstanding-run counter R that
// the queue tracks internally. It is created fresh by every call to
// Sorter.Sort and torn down before that call returns.
type sortContext[V any] struct {
	sorter *Sorter[V]
	pool   *workpool.Pool
	queue  *runqueue.Queue[tape.Tape[V]]

	// ctx is canceled the moment a task poisons the invocation, so
	// that any goroutine (including the driver) blocked on the run
	// queue's condition variables unblocks instead of waiting forever
	// for a run that a failed task will never push.
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func newSortContext[V any](ctx context.Context, s *Sorter[V]) *sortContext[V] {
	cctx, cancel := context.WithCancel(ctx)
	return &sortContext[V]{
		sorter: s,
		pool:   workpool.New(s.maxThreads),
		queue:  runqueue.New[tape.Tape[V]](s.fanIn),
		ctx:    cctx,
		cancel: cancel,
	}
}

func (sc *sortContext[V]) close() {
	sc.pool.Close()
	sc.cancel()
}

// poison records the invocation's first failure, logs it to the
// diagnostic sink, and unblocks every waiter on the run queue.
func (sc *sortContext[V]) poison(err error) {
	sc.mu.Lock()
	first := sc.err == nil
	if first {
		sc.err = err
	}
	sc.mu.Unlock()
	if first {
		log.Error.Printf("tapesort: sort poisoned: %v", err)
		sc.cancel()
	}
}

func (sc *sortContext[V]) Err() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.err
}

// produceRuns reads input on the calling goroutine in chunks of T
// (the per-thread value budget) and posts one initial-sort task per
// non-empty chunk. Reading the input tape is serialized on the
// driver; there is no shared reader.
func (sc *sortContext[V]) produceRuns(input tape.Tape[V]) {
	for {
		if sc.Err() != nil {
			return
		}
		chunk := input.ReadN(sc.sorter.perThreadBudget)
		if len(chunk) == 0 {
			return
		}
		sc.queue.AddOutstanding(1)
		sc.pool.Submit(func() {
			sc.sortAndWriteBlock(chunk)
		})
	}
}

func (sc *sortContext[V]) sortAndWriteBlock(values []V) {
	t, err := sc.sorter.provider.Get()
	if err != nil {
		sc.poison(errors.E(err, "tapesort: acquire scratch tape for initial run"))
		return
	}
	cmp := sc.sorter.cmp
	sort.Slice(values, func(i, j int) bool { return cmp(values[i], values[j]) })
	if n := t.WriteN(values); n != len(values) {
		sc.poison(errors.E(fmt.Sprintf(
			"tapesort: short write producing initial run: wrote %d of %d", n, len(values))))
		return
	}
	t.MoveToBegin()
	sc.queue.Push(t)
}

// mergeUntilOne drives the merge loop of spec §4.4: while more than
// one run remains, pop the next mergeable group and post a merge
// task, then account for the k inputs collapsing into 1 output.
func (sc *sortContext[V]) mergeUntilOne() error {
	for sc.queue.Outstanding() > 1 {
		group, err := sc.queue.PopGroupToMerge(sc.ctx)
		if err != nil {
			return err
		}
		k := len(group)
		sc.pool.Submit(func() {
			sc.mergeTapes(group)
		})
		sc.queue.AddOutstanding(-(k - 1))
	}
	return nil
}

func (sc *sortContext[V]) mergeTapes(group []tape.Tape[V]) {
	out, err := sc.sorter.provider.Get()
	if err != nil {
		sc.poison(errors.E(err, "tapesort: acquire scratch tape for merge output"))
		return
	}
	capacity := sc.sorter.perThreadBudget / (len(group) + 1)

	readers := make([]*blockio.Reader[V], len(group))
	for i, t := range group {
		r, err := blockio.NewReader[V](capacity, t)
		if err != nil {
			sc.poison(err)
			return
		}
		readers[i] = r
	}
	writer, err := blockio.NewWriter[V](capacity, out)
	if err != nil {
		sc.poison(err)
		return
	}

	h := newReaderHeap(readers, sc.sorter.cmp)
	if err := drainIntoWriter[V](h, writer); err != nil {
		sc.poison(err)
		return
	}
	if err := writer.Close(); err != nil {
		sc.poison(errors.E(err, "tapesort: flush merge output"))
		return
	}
	out.MoveToBegin()
	sc.queue.Push(out)
}

// finalize streams the sole remaining run to output block-by-block,
// then rewinds output, exactly as spec §4.4 describes for R == 1.
// An empty input (no runs ever produced) leaves output untouched at
// its starting position.
func (sc *sortContext[V]) finalize(output tape.Tape[V]) error {
	if sc.queue.Outstanding() == 0 {
		return nil
	}
	run, err := sc.queue.Pop(sc.ctx)
	if err != nil {
		return err
	}
	for {
		chunk := run.ReadN(sc.sorter.memoryLimit)
		if len(chunk) == 0 {
			break
		}
		if n := output.WriteN(chunk); n != len(chunk) {
			return errors.E(fmt.Sprintf(
				"tapesort: short write streaming final run to output: wrote %d of %d", n, len(chunk)))
		}
	}
	output.MoveToBegin()
	return nil
}
