// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tapesort

import (
	"context"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"

	"github.com/stolex1y/sorting-on-tape/config"
	"github.com/stolex1y/sorting-on-tape/scratch"
	"github.com/stolex1y/sorting-on-tape/tape"
)

func ascending(a, b int64) bool  { return a < b }
func descending(a, b int64) bool { return a > b }

func newTestSorter(t *testing.T, cfg *config.Config) (*Sorter[int64], *scratch.Provider[int64]) {
	t.Helper()
	provider, err := scratch.New[int64]("tapesort-test", tape.BinaryCodec[int64](), tape.Latencies{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { provider.Close() })
	s, err := NewSorter[int64](cfg, 8, provider, ascending)
	if err != nil {
		t.Fatal(err)
	}
	return s, provider
}

func runSort(t *testing.T, s *Sorter[int64], input []int64) []int64 {
	t.Helper()
	in := tape.NewMemTapeFromValues[int64](tape.Latencies{}, input, true)
	out := tape.NewMemTape[int64](tape.Latencies{})
	if err := s.Sort(context.Background(), in, out); err != nil {
		t.Fatal(err)
	}
	return out.Values()
}

// S1 / property 2 (orderedness): ascending order.
func TestSortAscending(t *testing.T) {
	s, _ := newTestSorter(t, config.New())
	got := runSort(t, s, []int64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5})
	want := []int64{1, 1, 2, 3, 3, 4, 5, 5, 5, 6, 9}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// S2: descending order.
func TestSortDescending(t *testing.T) {
	s, err := func() (*Sorter[int64], error) {
		provider, err := scratch.New[int64]("tapesort-test", tape.BinaryCodec[int64](), tape.Latencies{})
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { provider.Close() })
		return NewSorter[int64](config.New(), 8, provider, descending)
	}()
	if err != nil {
		t.Fatal(err)
	}
	got := runSort(t, s, []int64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5})
	want := []int64{9, 6, 5, 5, 5, 4, 3, 3, 2, 1, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// S3: a large random corpus under a tight memory limit, forcing many
// runs and multi-level merges.
func TestSortLargeRandomCorpusUnderTightMemory(t *testing.T) {
	fz := fuzz.New()
	const n = 100000
	input := make([]int64, n)
	for i := range input {
		var v int64
		fz.Fuzz(&v)
		input[i] = v
	}

	cfg, err := config.Parse(strings.NewReader("memory_limit=1024\nmax_thread_count=4\n"))
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSorter(t, cfg)
	got := runSort(t, s, input)

	want := append([]int64(nil), input...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch sorting %d random values under a tight memory budget", n)
	}
}

// Property 1 (permutation), established incidentally by every test
// here since we compare the full multiset, not just orderedness.

// S4: empty input.
func TestSortEmptyInput(t *testing.T) {
	s, _ := newTestSorter(t, config.New())
	got := runSort(t, s, nil)
	if len(got) != 0 {
		t.Fatalf("got %v, want empty output", got)
	}
}

// Property 4 (singleton).
func TestSortSingleton(t *testing.T) {
	s, _ := newTestSorter(t, config.New())
	got := runSort(t, s, []int64{42})
	if !reflect.DeepEqual(got, []int64{42}) {
		t.Fatalf("got %v, want [42]", got)
	}
}

// Property 3 (idempotence): sorting an already-sorted input doesn't
// reorder it.
func TestSortIdempotentOnSortedInput(t *testing.T) {
	s, _ := newTestSorter(t, config.New())
	input := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := runSort(t, s, input)
	if !reflect.DeepEqual(got, input) {
		t.Fatalf("got %v, want %v", got, input)
	}
}

// Property 5: reverse-sorted input sorts to ascending under <.
func TestSortReverseSortedInput(t *testing.T) {
	s, _ := newTestSorter(t, config.New())
	input := []int64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	got := runSort(t, s, input)
	want := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// S5: a memory_limit of exactly sizeof(V) must fail construction
// with InvalidConfig before any I/O happens.
func TestNewSorterRejectsTinyMemoryLimit(t *testing.T) {
	provider, err := scratch.New[int64]("tapesort-test", tape.BinaryCodec[int64](), tape.Latencies{})
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	cfg, err := config.Parse(strings.NewReader("memory_limit=8\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSorter[int64](cfg, 8, provider, ascending); err == nil {
		t.Fatal("expected InvalidConfig for a memory_limit of exactly sizeof(V)")
	}
}

func TestNewSorterRejectsImpossibleFanIn(t *testing.T) {
	provider, err := scratch.New[int64]("tapesort-test", tape.BinaryCodec[int64](), tape.Latencies{})
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	cfg, err := config.Parse(strings.NewReader("max_value_count_per_thread=4\nmax_merging_group_size=50\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSorter[int64](cfg, 8, provider, ascending); err == nil {
		t.Fatal("expected InvalidConfig when T/(K+1) < 1")
	}
}

// S7-adjacent: with a small fan-in and many runs, sorting still
// produces correct output regardless of the number of merge levels
// that requires.
func TestSortWithSmallFanIn(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader("max_merging_group_size=2\nmax_value_count_per_thread=8\n"))
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSorter(t, cfg)

	r := rand.New(rand.NewSource(1))
	input := make([]int64, 256)
	for i := range input {
		input[i] = r.Int63n(1000)
	}
	got := runSort(t, s, input)
	want := append([]int64(nil), input...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if !reflect.DeepEqual(got, want) {
		t.Fatal("mismatch sorting with a small merge fan-in")
	}
}
