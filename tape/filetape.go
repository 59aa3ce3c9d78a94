// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tape

import (
	"io"
	"os"
	"time"

	"github.com/grailbio/base/errors"
)

// FileTape is a Tape backed by a dense, headerless file of
// fixed-width records: record i occupies bytes [i*size, (i+1)*size)
// of the file, encoded by codec. The head position is a record
// index, not a byte offset; FileTape converts between the two on
// every operation.
//
// A read-only FileTape disallows writes and refuses to advance past
// the last record. A read/write FileTape allows writing past the
// current end of file, which extends it.
type FileTape[V any] struct {
	f         *os.File
	codec     Codec[V]
	latencies Latencies
	readOnly  bool
	pos       int64 // current head, in records
}

// OpenFileTape opens the file at path as a FileTape. If readOnly,
// the file must already exist and writes are rejected; otherwise the
// file is created if it doesn't exist, and truncated only when it
// didn't previously exist (matching the original emulator: an
// existing mutable file is opened for append-in-place, not
// clobbered).
func OpenFileTape[V any](path string, codec Codec[V], latencies Latencies, readOnly bool) (*FileTape[V], error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	} else if !existed {
		flag |= os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.E(err, "tape: open "+path)
	}
	return &FileTape[V]{f: f, codec: codec, latencies: latencies, readOnly: readOnly}, nil
}

// Close releases the underlying file descriptor. It does not remove
// the file; ownership of the file's lifetime belongs to whoever
// created it (typically a scratch.Provider).
func (t *FileTape[V]) Close() error {
	return t.f.Close()
}

func (t *FileTape[V]) recordSize() int64 { return int64(t.codec.Size()) }

func (t *FileTape[V]) lastPos() (int64, error) {
	info, err := t.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size() / t.recordSize(), nil
}

func (t *FileTape[V]) Read() (v V, ok bool) {
	buf := make([]byte, t.codec.Size())
	if _, err := t.f.ReadAt(buf, t.pos*t.recordSize()); err != nil {
		return v, false
	}
	t.pos++
	time.Sleep(t.latencies.Read + t.latencies.Move)
	return t.codec.Decode(buf), true
}

func (t *FileTape[V]) ReadN(n int) []V {
	out := make([]V, 0, n)
	for i := 0; i < n; i++ {
		v, ok := t.Read()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func (t *FileTape[V]) Write(v V) bool {
	if t.readOnly {
		return false
	}
	buf := t.codec.Encode(nil, v)
	if _, err := t.f.WriteAt(buf, t.pos*t.recordSize()); err != nil {
		return false
	}
	t.pos++
	time.Sleep(t.latencies.Write + t.latencies.Move)
	return true
}

func (t *FileTape[V]) WriteN(vs []V) int {
	for i, v := range vs {
		if !t.Write(v) {
			return i
		}
	}
	return len(vs)
}

func (t *FileTape[V]) MoveForward() bool {
	next := t.pos + 1
	if t.readOnly {
		last, err := t.lastPos()
		if err != nil || next > last {
			return false
		}
	}
	t.pos = next
	time.Sleep(t.latencies.Move)
	return true
}

func (t *FileTape[V]) MoveBackward() bool {
	if t.pos == 0 {
		return false
	}
	t.pos--
	time.Sleep(t.latencies.Move)
	return true
}

func (t *FileTape[V]) MoveToBegin() {
	time.Sleep(t.latencies.Rewind)
	t.pos = 0
}

func (t *FileTape[V]) MoveToEnd() {
	time.Sleep(t.latencies.Rewind)
	last, err := t.lastPos()
	if err != nil {
		last = 0
	}
	t.pos = last
}

var _ io.Closer = (*FileTape[int])(nil)
