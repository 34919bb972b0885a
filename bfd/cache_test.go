// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"testing"
)

func TestManyFilesFewHandles(t *testing.T) {
	const (
		maxOpen = 10
		nFiles  = 15
	)
	c := testContext(t, WithMaxOpen(maxOpen))
	dir := t.TempDir()

	var files []*File
	for i := 0; i < nFiles; i++ {
		data := []byte(fmt.Sprintf("file %02d: 0123456789", i))
		f, err := c.OpenRead(writeFile(t, filepath.Join(dir, fmt.Sprint(i)), data), "binary")
		if err != nil {
			t.Fatal(err)
		}
		files = append(files, f)
		if got, want := c.Cache().OpenCount(), min(i+1, maxOpen); got != want {
			t.Fatalf("after %d opens, OpenCount() = %d; want %d", i+1, got, want)
		}
	}

	rng := rand.New(rand.NewSource(1))
	offsets := make([]int64, nFiles)
	for iter := 0; iter < 200; iter++ {
		i := rng.Intn(nFiles)
		f := files[i]
		var buf [1]byte
		if _, err := f.Read(buf[:]); err != nil && err != io.EOF {
			t.Fatalf("reading file %d: %v", i, err)
		}
		want := fmt.Sprintf("file %02d: 0123456789", i)
		if offsets[i] < int64(len(want)) {
			if buf[0] != want[offsets[i]] {
				t.Fatalf("file %d offset %d = %q; want %q", i, offsets[i], buf[0], want[offsets[i]])
			}
			offsets[i]++
		}
		if got := c.Cache().OpenCount(); got != maxOpen {
			t.Fatalf("OpenCount() = %d; want %d", got, maxOpen)
		}
	}
	if st := c.Cache().Stats(); st.Evictions == 0 || st.Reopens == 0 {
		t.Errorf("stats %+v show no evictions or reopens", st)
	}

	for _, f := range files {
		if err := f.Close(); err != nil {
			t.Error(err)
		}
	}
	if got := c.Cache().OpenCount(); got != 0 {
		t.Errorf("OpenCount() = %d after closing everything", got)
	}
	if c.Live() != 0 {
		t.Errorf("Live() = %d after closing everything", c.Live())
	}
}
