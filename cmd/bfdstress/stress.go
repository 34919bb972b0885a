// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"hash/crc32"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/aclements/go-moremath/stats"
	"go.uber.org/zap"

	"github.com/aclements/go-bfd/bfd"
	"github.com/aclements/go-bfd/internal/fcache"
)

// A Stress reads sections of a set of object files from many
// goroutines at once through one context, so the context's file
// cache must keep closing and reopening descriptors.
type Stress struct {
	Ctx         *bfd.Context
	Files       []string
	Parallelism int
	Duration    time.Duration
	MaxReads    int // If 0, no limit
	Seed        int64

	Interrupt <-chan struct{}
}

type ResultKind int

const (
	ResultPass ResultKind = iota
	ResultFail
	ResultError
)

// A Summary describes a completed stress run.
type Summary struct {
	Reads      int
	Mismatches int
	Latency    stats.Sample // seconds per read
	Cache      cacheStats
}

type cacheStats struct {
	Opens, Reopens, Evictions int
}

func cacheDelta(before, after fcache.Stats) cacheStats {
	return cacheStats{
		Opens:     after.Opens - before.Opens,
		Reopens:   after.Reopens - before.Reopens,
		Evictions: after.Evictions - before.Evictions,
	}
}

// Progress is a snapshot of a running stress test.
type Progress struct {
	Reads      int
	Mismatches int
	Open       int        // descriptors the cache holds
	Cache      cacheStats // since the run started
}

func (p Progress) String() string {
	return fmt.Sprintf("%d reads, %d mismatches, %d open, %d reopens, %d evictions",
		p.Reads, p.Mismatches, p.Open, p.Cache.Reopens, p.Cache.Evictions)
}

// A target is one section of one file and the checksum of its first
// read.
type target struct {
	file string
	sec  string
	size uint64
	crc  uint32
}

type readResult struct {
	t       *target
	crc     uint32
	latency time.Duration
	err     error
}

// A StressReporter shows progress while a run goes and prints
// failures as they happen.
type StressReporter interface {
	io.Writer
	StartStatus()
	Status(p Progress)
	StopStatus()
}

// targets opens every file once and records a checksum of each of its
// sections with contents.
func (s *Stress) targets() ([]*target, error) {
	var out []*target
	for _, name := range s.Files {
		f, err := s.Ctx.OpenRead(name, "")
		if err != nil {
			return nil, err
		}
		if err := f.CheckFormat(bfd.FormatObject); err != nil {
			f.Close()
			return nil, err
		}
		for _, sec := range f.Sections() {
			if sec.Flags&bfd.SecHasContents == 0 || sec.Size == 0 {
				continue
			}
			data, err := f.FullSectionContents(sec)
			if err != nil {
				f.Close()
				return nil, err
			}
			out = append(out, &target{name, sec.Name, sec.Size, crc32.ChecksumIEEE(data)})
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sections with contents in %d files", len(s.Files))
	}
	return out, nil
}

func (s *Stress) Run(reporter StressReporter) (ResultKind, *Summary) {
	const MaxInt = int(^uint(0) >> 1)
	if s.MaxReads <= 0 {
		s.MaxReads = MaxInt
	}
	log := s.Ctx.Logger()

	targets, err := s.targets()
	if err != nil {
		log.Error("reading files", zap.Error(err))
		return ResultError, nil
	}
	before := s.Ctx.Cache().Stats()

	stop := make(chan struct{})
	results := make(chan readResult, s.Parallelism)
	reporter.StartStatus()

	var wg sync.WaitGroup
	for i := 0; i < s.Parallelism; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			s.runner(rand.New(rand.NewSource(seed)), targets, stop, results)
		}(s.Seed + int64(i))
	}

	sum := new(Summary)
	fatal := false
	deadline := time.After(s.Duration)
	updateStatus := func() {
		reporter.Status(Progress{
			Reads:      sum.Reads,
			Mismatches: sum.Mismatches,
			Open:       s.Ctx.Cache().OpenCount(),
			Cache:      cacheDelta(before, s.Ctx.Cache().Stats()),
		})
	}
loop:
	for sum.Reads < s.MaxReads {
		updateStatus()

		var res readResult
		select {
		case res = <-results:
		case <-deadline:
			break loop
		case <-s.Interrupt:
			break loop
		}

		if res.err != nil {
			fmt.Fprintf(reporter, "reading %s in %s: %v\n", res.t.sec, res.t.file, res.err)
			fatal = true
			break
		}
		sum.Reads++
		sum.Latency.Xs = append(sum.Latency.Xs, res.latency.Seconds())
		if res.crc != res.t.crc {
			sum.Mismatches++
			fmt.Fprintf(reporter, "%s in %s: checksum %08x, want %08x\n", res.t.sec, res.t.file, res.crc, res.t.crc)
		}
	}
	updateStatus()
	reporter.StopStatus()

	close(stop)
	// Drain so blocked runners can observe stop.
	go func() {
		for range results {
		}
	}()
	wg.Wait()
	close(results)

	sum.Cache = cacheDelta(before, s.Ctx.Cache().Stats())

	switch {
	case fatal:
		return ResultError, sum
	case sum.Mismatches > 0:
		return ResultFail, sum
	}
	return ResultPass, sum
}

// runner keeps every file open and reads random sections until stop
// is closed. Each file is read through its own handle, so only the
// cache is shared with other runners.
func (s *Stress) runner(rng *rand.Rand, targets []*target, stop <-chan struct{}, results chan<- readResult) {
	files := make(map[string]*bfd.File)
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for {
		t := targets[rng.Intn(len(targets))]
		res := readResult{t: t}
		start := time.Now()
		res.crc, res.err = s.read(files, t)
		res.latency = time.Since(start)

		select {
		case results <- res:
		case <-stop:
			return
		}
		if res.err != nil {
			return
		}
	}
}

func (s *Stress) read(files map[string]*bfd.File, t *target) (uint32, error) {
	f := files[t.file]
	if f == nil {
		var err error
		f, err = s.Ctx.OpenRead(t.file, "")
		if err != nil {
			return 0, err
		}
		files[t.file] = f
		if err := f.CheckFormat(bfd.FormatObject); err != nil {
			return 0, err
		}
	}
	sec := f.SectionByName(t.sec)
	if sec == nil {
		return 0, fmt.Errorf("section %s disappeared", t.sec)
	}
	buf := make([]byte, t.size)
	if err := f.SectionContents(sec, buf, 0); err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(buf), nil
}

// Format writes a report of sum to w.
func (sum *Summary) Format(w io.Writer) {
	fmt.Fprintf(w, "%d reads, %d mismatches\n", sum.Reads, sum.Mismatches)
	fmt.Fprintf(w, "cache: %d opens, %d reopens, %d evictions\n", sum.Cache.Opens, sum.Cache.Reopens, sum.Cache.Evictions)
	if len(sum.Latency.Xs) == 0 {
		return
	}
	xs := sum.Latency.Xs
	lo, hi := stats.Bounds(xs)
	fmt.Fprintf(w, "latency: min %s, median %s, p99 %s, max %s, mean %s ± %s\n",
		seconds(lo), seconds(sum.Latency.Quantile(0.5)), seconds(sum.Latency.Quantile(0.99)), seconds(hi),
		seconds(stats.Mean(xs)), seconds(stats.StdDev(xs)))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond / 10)
}

