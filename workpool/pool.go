// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package workpool implements a pool of goroutines that execute
// submitted tasks concurrently, growing lazily up to a fixed
// ceiling, in the style of the teacher's goroutine-group management
// (golang.org/x/sync/errgroup) combined with the original sorting
// program's thread pool: new workers are spawned only when every
// existing one is busy.
package workpool

import (
	"sync"

	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of work submitted to a Pool. A Task that panics
// does not crash the pool: the panic is recovered at the worker
// boundary, logged, and the worker moves on to its next task.
type Task func()

// Pool executes submitted Tasks on up to maxWorkers goroutines.
// Workers are spawned lazily: a new one is added only when every
// existing worker is currently busy and the ceiling hasn't been
// reached.
//
// Destroying a Pool while tasks are in flight is undefined; callers
// must ensure all work submitted to the pool has completed before
// calling Close. See Close.
type Pool struct {
	mu         sync.Mutex
	g          errgroup.Group
	queue      []Task
	hasWork    *sync.Cond
	maxWorkers int
	workers    int
	idle       int
	closed     bool
}

// New returns a Pool that grows to at most maxWorkers goroutines.
// maxWorkers must be at least 1.
func New(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{maxWorkers: maxWorkers}
	p.hasWork = sync.NewCond(&p.mu)
	return p
}

// Submit enqueues task for execution. If every existing worker is
// busy and the pool has fewer than maxWorkers goroutines, Submit
// spawns one more.
func (p *Pool) Submit(task Task) {
	p.mu.Lock()
	p.queue = append(p.queue, task)
	grow := p.workers < p.maxWorkers && p.idle == 0
	if grow {
		p.workers++
		p.idle++
	}
	p.hasWork.Signal()
	p.mu.Unlock()

	if grow {
		p.g.Go(func() error {
			p.runWorker()
			return nil
		})
	}
}

func (p *Pool) runWorker() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.hasWork.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.idle--
		p.mu.Unlock()

		runTask(task)

		p.mu.Lock()
		p.idle++
		p.mu.Unlock()
	}
}

// runTask executes task, recovering and logging any panic so a
// single failing task can't take down a worker goroutine.
func runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error.Printf("workpool: task panicked: %v", r)
		}
	}()
	task()
}

// Close signals every worker to exit once its currently-running task
// (if any) and the remaining queue are drained, wakes them, and
// blocks until they've all exited. The caller must have already
// ensured no further Submit calls will arrive and that any
// in-progress sort has fully completed: Close does not cancel
// queued work, it only stops accepting new workers.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.hasWork.Broadcast()
	_ = p.g.Wait()
}
