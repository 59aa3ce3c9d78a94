// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package blockio amortizes per-record tape latency by batching
// reads and writes into fixed-capacity blocks, the way the teacher's
// sliceio package batches slice I/O into frames.
package blockio

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/must"

	"github.com/stolex1y/sorting-on-tape/tape"
)

// Reader buffers reads from a Tape, capacity records at a time, so
// that the underlying tape is touched once per block instead of once
// per record.
type Reader[V any] struct {
	capacity int
	tape     tape.Tape[V]
	values   []V
	pos      int
}

// NewReader returns a Reader over t with the given capacity. It
// eagerly loads the first block. capacity must be at least 1.
func NewReader[V any](capacity int, t tape.Tape[V]) (*Reader[V], error) {
	if capacity < 1 {
		return nil, errors.E(errors.Invalid, "blockio: reader capacity must be >= 1")
	}
	r := &Reader[V]{capacity: capacity, tape: t}
	r.fill()
	return r, nil
}

func (r *Reader[V]) fill() {
	r.values = r.tape.ReadN(r.capacity)
	r.pos = 0
}

// Read returns the record under the reader's logical position.
// It panics (OutOfBounds is a precondition violation, not a data
// condition) if the tape is exhausted and the buffer is drained.
func (r *Reader[V]) Read() V {
	must.Truef(r.pos < len(r.values), "blockio: read out of bounds")
	return r.values[r.pos]
}

// Advance moves to the next record, refilling from the tape when the
// current block is consumed. It returns false once the tape is
// drained and the buffer has been consumed; true otherwise.
func (r *Reader[V]) Advance() bool {
	r.pos++
	if r.pos >= len(r.values) {
		r.fill()
		return len(r.values) > 0
	}
	return true
}

// Writer buffers writes to a Tape, flushing a full block to the
// tape at once.
type Writer[V any] struct {
	capacity int
	tape     tape.Tape[V]
	values   []V
}

// NewWriter returns a Writer over t with the given capacity, which
// must be at least 1.
func NewWriter[V any](capacity int, t tape.Tape[V]) (*Writer[V], error) {
	if capacity < 1 {
		return nil, errors.E(errors.Invalid, "blockio: writer capacity must be >= 1")
	}
	return &Writer[V]{capacity: capacity, tape: t, values: make([]V, 0, capacity)}, nil
}

// Write appends v to the buffer, flushing to the tape once the
// buffer reaches capacity.
func (w *Writer[V]) Write(v V) error {
	w.values = append(w.values, v)
	if len(w.values) == w.capacity {
		return w.flushBuffer()
	}
	return nil
}

// Flush forces the current buffer to the tape. It is idempotent: a
// second call with nothing buffered is a no-op.
func (w *Writer[V]) Flush() error {
	return w.flushBuffer()
}

func (w *Writer[V]) flushBuffer() error {
	if len(w.values) == 0 {
		return nil
	}
	pending := len(w.values)
	n := w.tape.WriteN(w.values)
	w.values = w.values[:0]
	if n != pending {
		return errors.E(fmt.Sprintf("blockio: short write to tape, wrote %d of %d", n, pending))
	}
	return nil
}

// Close flushes the writer's buffer to the tape. A failure to flush
// is fatal: partial data on a scratch tape would violate the Run
// invariant downstream, so Close reports it rather than swallowing
// it silently.
func (w *Writer[V]) Close() error {
	return w.Flush()
}
