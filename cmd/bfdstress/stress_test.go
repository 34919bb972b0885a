// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aclements/go-bfd/bfd"
	"github.com/aclements/go-bfd/internal/config"
)

type quietReporter struct{ io.Writer }

func (quietReporter) StartStatus()    {}
func (quietReporter) Status(Progress) {}
func (quietReporter) StopStatus()     {}

func writeObjects(t *testing.T, c *bfd.Context, n int) []string {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	var names []string
	for i := 0; i < n; i++ {
		name := filepath.Join(t.TempDir(), fmt.Sprintf("obj%d.o", i))
		f, err := c.OpenWrite(name, "elf64-little")
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetFormat(bfd.FormatObject); err != nil {
			t.Fatal(err)
		}
		// Lay out both sections before writing either.
		var secs []*bfd.Section
		var contents [][]byte
		for _, sec := range []string{".text", ".data"} {
			s, err := f.MakeSectionWithFlags(sec, bfd.SecAlloc|bfd.SecLoad|bfd.SecHasContents)
			if err != nil {
				t.Fatal(err)
			}
			data := make([]byte, 256+rng.Intn(4096))
			rng.Read(data)
			if err := f.SetSectionSize(s, uint64(len(data))); err != nil {
				t.Fatal(err)
			}
			secs = append(secs, s)
			contents = append(contents, data)
		}
		for i, s := range secs {
			if err := f.SetSectionContents(s, contents[i], 0); err != nil {
				t.Fatal(err)
			}
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	return names
}

func TestStress(t *testing.T) {
	c := bfd.NewContext(bfd.WithConfig(config.Config{MaxOpen: 2}))
	s := Stress{
		Ctx:         c,
		Files:       writeObjects(t, c, 6),
		Parallelism: 4,
		Duration:    time.Minute,
		MaxReads:    200,
		Seed:        1,
	}
	var out strings.Builder
	result, sum := s.Run(quietReporter{&out})
	if result != ResultPass {
		t.Fatalf("result %v; output:\n%s", result, out.String())
	}
	if sum.Reads != 200 || sum.Mismatches != 0 {
		t.Errorf("%d reads, %d mismatches; want 200 and 0", sum.Reads, sum.Mismatches)
	}
	if len(sum.Latency.Xs) != sum.Reads {
		t.Errorf("%d latencies for %d reads", len(sum.Latency.Xs), sum.Reads)
	}
	if sum.Cache.Reopens == 0 || sum.Cache.Evictions == 0 {
		t.Errorf("cache stats %+v; want reopens and evictions", sum.Cache)
	}
	if got := c.Cache().OpenCount(); got != 0 {
		t.Errorf("%d files still open after Run", got)
	}

	var report strings.Builder
	sum.Format(&report)
	if !strings.HasPrefix(report.String(), "200 reads, 0 mismatches\n") {
		t.Errorf("report:\n%s", report.String())
	}
}

func TestStressBadFile(t *testing.T) {
	c := bfd.NewContext()
	s := Stress{
		Ctx:         c,
		Files:       []string{filepath.Join(t.TempDir(), "missing")},
		Parallelism: 1,
		Duration:    time.Second,
	}
	if result, sum := s.Run(quietReporter{io.Discard}); result != ResultError || sum != nil {
		t.Errorf("Run on missing file = %v, %v", result, sum)
	}
}
