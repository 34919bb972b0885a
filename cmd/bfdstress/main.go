// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bfdstress reads object files from many goroutines through
// a file cache with few descriptors and checks that every read
// returns the same bytes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/aclements/go-bfd/bfd"
	"github.com/aclements/go-bfd/internal/config"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags] objfile...

bfdstress opens each objfile and reads its sections at random from
parallel readers until the duration passes. All readers share one
cache limited to -max-open descriptors, so files are constantly
closed and reopened behind their handles.

A read whose checksum differs from the first read of that section is
a failure. The exit status is 0 if no read failed, 1 if any did, and
2 on errors.

`, os.Args[0])
		flag.PrintDefaults()
	}

	var s Stress
	flag.IntVar(&s.Parallelism, "p", runtime.NumCPU(), "run `N` readers in parallel")
	flag.DurationVar(&s.Duration, "d", 10*time.Second, "stop after `duration`")
	flag.IntVar(&s.MaxReads, "n", 0, "stop after `N` reads (0 for no limit)")
	flag.Int64Var(&s.Seed, "seed", time.Now().UnixNano(), "random `seed`")
	maxOpen := flag.Int("max-open", 4, "keep at most `N` files open")
	verbose := flag.Bool("v", false, "log cache activity")
	flag.Parse()
	s.Files = flag.Args()
	if s.Parallelism <= 0 || s.Duration <= 0 || *maxOpen <= 0 || len(s.Files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		defer logger.Sync()
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	cfg.MaxOpen = *maxOpen
	s.Ctx = bfd.NewContext(bfd.WithConfig(cfg), bfd.WithLogger(logger))

	interrupt := make(chan struct{})
	s.Interrupt = interrupt
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, exitSignals...)
	go func() {
		<-sig
		// Let a second signal through, in case Run gets stuck.
		signal.Stop(sig)
		close(interrupt)
	}()

	result, sum := s.Run(NewStdoutReporter())
	if sum != nil {
		sum.Format(os.Stdout)
	}
	switch result {
	case ResultPass:
		os.Exit(0)
	case ResultFail:
		os.Exit(1)
	default:
		os.Exit(2)
	}
}
