// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tapesort

import (
	"container/heap"

	"github.com/grailbio/base/errors"

	"github.com/stolex1y/sorting-on-tape/blockio"
)

// readerHeap is a binary heap of block readers, keyed on each
// reader's current head record under cmp, in the style of the
// teacher's sortio.FrameBufferHeap: the heap owns a slice of
// *blockio.Reader and reorders it via container/heap's Less/Swap.
type readerHeap[V any] struct {
	readers []*blockio.Reader[V]
	cmp     Comparator[V]
}

func newReaderHeap[V any](readers []*blockio.Reader[V], cmp Comparator[V]) *readerHeap[V] {
	h := &readerHeap[V]{readers: readers, cmp: cmp}
	heap.Init(h)
	return h
}

func (h *readerHeap[V]) Len() int { return len(h.readers) }

func (h *readerHeap[V]) Less(i, j int) bool {
	return h.cmp(h.readers[i].Read(), h.readers[j].Read())
}

func (h *readerHeap[V]) Swap(i, j int) {
	h.readers[i], h.readers[j] = h.readers[j], h.readers[i]
}

func (h *readerHeap[V]) Push(x any) {
	h.readers = append(h.readers, x.(*blockio.Reader[V]))
}

func (h *readerHeap[V]) Pop() any {
	n := len(h.readers)
	r := h.readers[n-1]
	h.readers = h.readers[:n-1]
	return r
}

// drainIntoWriter repeatedly extracts the minimum-keyed reader from
// h, emits its record to w, and advances it, re-inserting it while it
// still has records. It is the k-way merge's inner loop (spec §4.4).
func drainIntoWriter[V any](h *readerHeap[V], w *blockio.Writer[V]) error {
	for h.Len() > 0 {
		r := heap.Pop(h).(*blockio.Reader[V])
		if err := w.Write(r.Read()); err != nil {
			return errors.E(err, "tapesort: write merged record")
		}
		if r.Advance() {
			heap.Push(h, r)
		}
	}
	return nil
}
