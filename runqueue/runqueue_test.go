// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runqueue

import (
	"context"
	"testing"
	"time"
)

func TestPopGroupToMergeWaitsForMinOfROrMaxGroup(t *testing.T) {
	q := New[int](4)
	q.AddOutstanding(2) // R = 2, below maxGroup

	done := make(chan []int, 1)
	go func() {
		group, err := q.PopGroupToMerge(context.Background())
		if err != nil {
			t.Error(err)
			return
		}
		done <- group
	}()

	q.Push(1)
	select {
	case <-done:
		t.Fatal("PopGroupToMerge returned before min(R, maxGroup) runs were pushed")
	case <-time.After(20 * time.Millisecond):
	}
	q.Push(2)

	select {
	case group := <-done:
		if len(group) != 2 {
			t.Fatalf("got group of size %d, want 2", len(group))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for PopGroupToMerge")
	}
}

func TestPopGroupToMergeShrinksBelowMaxGroupNearEnd(t *testing.T) {
	q := New[int](8) // maxGroup larger than the actual remaining runs
	q.AddOutstanding(3)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	group, err := q.PopGroupToMerge(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(group) != 3 {
		t.Fatalf("got group of size %d, want 3 (R, not maxGroup)", len(group))
	}
}

func TestPopFIFOOrder(t *testing.T) {
	q := New[int](4)
	q.AddOutstanding(3)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	for _, want := range []int{1, 2, 3} {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		q.AddOutstanding(-1)
	}
}

func TestPopCanceledContext(t *testing.T) {
	q := New[int](4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Pop(ctx); err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
