// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command extsort sorts a file of fixed-width int64 records too
// large to fit in memory, using an external k-way merge over
// scratch tapes backed by the local filesystem.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/grailbio/base/log"

	"github.com/stolex1y/sorting-on-tape/config"
	"github.com/stolex1y/sorting-on-tape/scratch"
	"github.com/stolex1y/sorting-on-tape/tape"
	tapesort "github.com/stolex1y/sorting-on-tape"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a key=value configuration file")
		cpuprofile = flag.String("cpuprofile", "", "write a CPU profile to this path")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <input-path> <output-path> [asc|desc]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	inputPath := flag.Arg(0)
	outputPath := flag.Arg(1)
	order := ""
	if flag.NArg() >= 3 {
		order = flag.Arg(2)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Error.Printf("extsort: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Error.Printf("extsort: %v", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if err := run(inputPath, outputPath, order, *configPath); err != nil {
		log.Error.Printf("extsort: %v", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath, order, configPath string) error {
	cfg := config.New()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	// An order given on the command line takes precedence over the
	// config file's sort_order; with neither, the order is ascending.
	if order == "" {
		order = cfg.SortOrder
	}
	if order == "" {
		order = "asc"
	}

	var cmp tapesort.Comparator[int64]
	switch order {
	case "asc":
		cmp = func(a, b int64) bool { return a < b }
	case "desc":
		cmp = func(a, b int64) bool { return a > b }
	default:
		return fmt.Errorf("sort order must be %q or %q, got %q", "asc", "desc", order)
	}

	latencies := tape.Latencies{
		Read:   cfg.GetDuration(config.ReadDurationKey, config.DefaultReadDuration),
		Write:  cfg.GetDuration(config.WriteDurationKey, config.DefaultWriteDuration),
		Move:   cfg.GetDuration(config.MoveDurationKey, config.DefaultMoveDuration),
		Rewind: cfg.GetDuration(config.RewindDurationKey, config.DefaultRewindDuration),
	}
	codec := tape.BinaryCodec[int64]()

	input, err := tape.OpenFileTape[int64](inputPath, codec, latencies, true)
	if err != nil {
		return fmt.Errorf("opening input tape: %w", err)
	}
	defer input.Close()

	output, err := tape.OpenFileTape[int64](outputPath, codec, latencies, false)
	if err != nil {
		return fmt.Errorf("opening output tape: %w", err)
	}
	defer output.Close()

	provider, err := scratch.New[int64]("extsort", codec, latencies)
	if err != nil {
		return fmt.Errorf("creating scratch provider: %w", err)
	}
	defer provider.Close()

	sorter, err := tapesort.NewSorter[int64](cfg, 8, provider, cmp)
	if err != nil {
		return fmt.Errorf("building sorter: %w", err)
	}

	log.Printf("extsort: sorting %s -> %s (%s)", inputPath, outputPath, order)
	if err := sorter.Sort(context.Background(), input, output); err != nil {
		return fmt.Errorf("sorting: %w", err)
	}
	log.Printf("extsort: done")
	return nil
}
