// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package runqueue implements the FIFO of sorted runs awaiting merge
// that sits at the heart of a sort's shared Context: a single mutex
// guards the queue and the outstanding-run counter R, and a waiter
// blocks by watching a single per-state "changed" channel that every
// mutation replaces, re-checking its own predicate (queue non-empty,
// or a mergeable group is available) each time it wakes, rather than
// the queue's length alone.
package runqueue

import (
	"context"
	"sync"
)

// Queue is a FIFO of runs (represented opaquely as T, typically a
// tape holding the run) awaiting merge. It tracks R, the number of
// runs that will ultimately exist once every in-flight task
// completes: R starts at 0, is incremented once per produced run,
// and is decremented by k-1 every time k runs collapse into one
// merge output.
type Queue[T any] struct {
	mu       sync.Mutex
	changed  chan struct{} // closed and replaced on every Push/AddOutstanding
	items    []T
	r        int
	maxGroup int
}

// New returns an empty Queue whose merge fan-in is capped at
// maxGroup (the k-way merge factor). maxGroup must be at least 2.
func New[T any](maxGroup int) *Queue[T] {
	return &Queue[T]{maxGroup: maxGroup, changed: make(chan struct{})}
}

// wake notifies every blocked waiter that the queue's state changed,
// by closing the current channel and replacing it with a fresh one.
// The caller must hold q.mu.
func (q *Queue[T]) wake() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// AddOutstanding increments R by delta (delta may be negative, as
// when k runs collapse into one merge output: the caller posts the
// merge task, pushes nothing yet, and immediately reports delta =
// -(k-1)).
func (q *Queue[T]) AddOutstanding(delta int) {
	q.mu.Lock()
	q.r += delta
	q.wake()
	q.mu.Unlock()
}

// Outstanding returns the current value of R. It may be observed
// racily for optimistic checks; any decision based on it should be
// made while holding the queue's lock (i.e. from inside Push/Pop/
// PopGroupToMerge, or by calling one of those).
func (q *Queue[T]) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.r
}

// Push enqueues a newly-produced or newly-merged run and wakes every
// waiter; each re-checks its own predicate against the new state.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.wake()
	q.mu.Unlock()
}

// Pop blocks until the queue is non-empty and returns the front run.
// It is used only for the final run, once R == 1.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	q.mu.Lock()
	for len(q.items) == 0 {
		if err := q.waitLocked(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	defer q.mu.Unlock()
	return q.pop(), nil
}

// PopGroupToMerge blocks until the queue holds at least
// min(R, maxGroup) runs, then returns that many runs as a
// contiguous prefix of the queue. It is the only operation that may
// reorder relative to Push, in the sense that it takes a batch
// rather than one run at a time; within the batch, FIFO order is
// preserved.
func (q *Queue[T]) PopGroupToMerge(ctx context.Context) ([]T, error) {
	q.mu.Lock()
	for !q.hasGroupReadyLocked() {
		if err := q.waitLocked(ctx); err != nil {
			return nil, err
		}
	}
	defer q.mu.Unlock()
	n := q.r
	if n > q.maxGroup {
		n = q.maxGroup
	}
	group := make([]T, n)
	for i := range group {
		group[i] = q.pop()
	}
	return group, nil
}

// waitLocked blocks until the next Push or AddOutstanding, or until
// ctx is done. It must be called with q.mu held and returns with
// q.mu re-acquired; callers re-check their own predicate on return.
func (q *Queue[T]) waitLocked(ctx context.Context) error {
	changed := q.changed
	q.mu.Unlock()
	var err error
	select {
	case <-changed:
	case <-ctx.Done():
		err = ctx.Err()
	}
	q.mu.Lock()
	return err
}

// hasGroupReadyLocked re-evaluates the merge-ready predicate against
// R, not the queue's local length: the merge fan-in may legitimately
// shrink below maxGroup near the end of the sort.
func (q *Queue[T]) hasGroupReadyLocked() bool {
	want := q.r
	if want > q.maxGroup {
		want = q.maxGroup
	}
	return want > 0 && len(q.items) >= want
}

func (q *Queue[T]) pop() T {
	item := q.items[0]
	q.items = q.items[1:]
	return item
}
