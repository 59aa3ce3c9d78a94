// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tape provides the sequential, head-moving storage
// abstraction that the external sort is built on: a device that can
// only be read or written at its current head position, one record
// at a time, with an explicit rewind to jump to either end.
package tape

import "time"

// A Tape is a sequential device holding a linear array of
// fixed-width records of type V. It has a single movable head;
// operations either succeed and move the head, or fail and leave it
// unchanged. A Tape is single-owner: it is never read or written
// concurrently from two goroutines.
type Tape[V any] interface {
	// Read returns the record under the head and advances the head
	// by one. ok is false at end-of-tape; the head is unchanged.
	Read() (v V, ok bool)

	// ReadN reads up to n records forward, advancing the head past
	// the last one read. A result shorter than n signals end-of-tape.
	ReadN(n int) []V

	// Write writes v at the head and advances the head by one. It
	// returns false on a read-only tape or on I/O failure.
	Write(v V) bool

	// WriteN writes vs starting at the head, advancing the head past
	// the last one written. It returns the number of records
	// actually written; a short count signals a write failure.
	WriteN(vs []V) int

	// MoveForward advances the head by one record. It returns false
	// if there is no next record (e.g. a read-only tape at its end).
	MoveForward() bool

	// MoveBackward retreats the head by one record. It returns false
	// at the start of the tape.
	MoveBackward() bool

	// MoveToBegin rewinds the head to the first record.
	MoveToBegin()

	// MoveToEnd advances the head past the last record.
	MoveToEnd()
}

// Latencies describes the per-operation delays a Tape implementation
// simulates, modeling the cost of a real tape drive. A zero-value
// Latencies disables all simulated delay, which is appropriate for
// production tapes that aren't actually tape drives.
type Latencies struct {
	// Read is paid once per record read.
	Read time.Duration
	// Write is paid once per record written.
	Write time.Duration
	// Move is paid once per single-step head move (including the
	// implicit move performed by Read and Write).
	Move time.Duration
	// Rewind is paid once per MoveToBegin/MoveToEnd call.
	Rewind time.Duration
}

// DefaultLatencies mirrors the defaults of the original tape
// emulator: 7us to read, 7us to write, 1us to move one position, and
// 100us to rewind to either end.
var DefaultLatencies = Latencies{
	Read:   7 * time.Microsecond,
	Write:  7 * time.Microsecond,
	Move:   1 * time.Microsecond,
	Rewind: 100 * time.Microsecond,
}
