// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config reads the key=value configuration files that
// parameterize a sort: the memory budget, thread ceiling, per-thread
// value budget, merge fan-in, and the tape's simulated latencies.
package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/log"
)

// Keys recognized in a configuration file. Unrecognized keys are
// ignored, not an error: a config file is a loose property bag, the
// same way the original configuration reader treats it.
const (
	MemoryLimitKey            = "memory_limit"
	MaxThreadCountKey         = "max_thread_count"
	MaxValueCountPerThreadKey = "max_value_count_per_thread"
	MaxMergingGroupSizeKey    = "max_merging_group_size"
	ReadDurationKey           = "read_duration"
	WriteDurationKey          = "write_duration"
	MoveDurationKey           = "move_duration"
	RewindDurationKey         = "rewind_duration"
	SortOrderKey              = "sort_order"
)

// Defaults mirror the original tape emulator and sorter.
const (
	DefaultMemoryLimit            = 1 << 30 // 1 GiB
	DefaultMaxValueCountPerThread = 1000000
	DefaultMaxMergingGroupSize    = 50

	DefaultReadDuration   = 7 * time.Microsecond
	DefaultWriteDuration  = 7 * time.Microsecond
	DefaultMoveDuration   = 1 * time.Microsecond
	DefaultRewindDuration = 100 * time.Microsecond
)

// Config is a read-only property bag, immutable after construction
// (Load or New), exactly as spec.md requires: nothing in this
// package mutates a Config once it's handed back to the caller.
type Config struct {
	params map[string]uint64
	// SortOrder is populated from the sort_order key, if present; it
	// is a convenience alongside the numeric params map since the CLI
	// needs to read it too.
	SortOrder string
}

// New returns an empty Config; every GetX call on it returns its
// default.
func New() *Config {
	return &Config{params: map[string]uint64{}}
}

// Load reads a configuration file at path. Lines are key=value
// pairs; lines beginning with # are comments; malformed lines
// (missing '=', non-integer value for a duration/size key, sort_order
// outside {asc, desc}) are logged and otherwise ignored, never fatal
// — a malformed config line must not abort a sort that would
// otherwise have sane defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key=value configuration from r.
func Parse(r io.Reader) (*Config, error) {
	c := New()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			log.Printf("config: ignoring malformed line %q", line)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == SortOrderKey {
			if value != "asc" && value != "desc" {
				log.Printf("config: ignoring malformed value for %q: %q", key, value)
				continue
			}
			c.SortOrder = value
			continue
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			log.Printf("config: ignoring malformed value for %q: %v", key, err)
			continue
		}
		c.params[key] = n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetUint64 returns the value of key, or deflt if key is absent.
func (c *Config) GetUint64(key string, deflt uint64) uint64 {
	if v, ok := c.params[key]; ok {
		return v
	}
	return deflt
}

// GetDuration returns the value of key interpreted as a microsecond
// count, or deflt if key is absent.
func (c *Config) GetDuration(key string, deflt time.Duration) time.Duration {
	if v, ok := c.params[key]; ok {
		return time.Duration(v) * time.Microsecond
	}
	return deflt
}
