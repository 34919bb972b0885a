// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fcache

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
)

// makeFiles creates n files. File i holds four two-byte chunks,
// chunk(i, 0) through chunk(i, 3).
func makeFiles(t *testing.T, n int) []*Entry {
	t.Helper()
	dir := t.TempDir()
	var es []*Entry
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("f%02d", i))
		data := []byte(chunk(i, 0) + chunk(i, 1) + chunk(i, 2) + chunk(i, 3))
		if err := os.WriteFile(name, data, 0666); err != nil {
			t.Fatal(err)
		}
		es = append(es, &Entry{Name: name, Mode: ModeRead})
	}
	return es
}

func chunk(i, k int) string {
	return fmt.Sprintf("%c%d", 'a'+i, k)
}

func read2(t *testing.T, c *Cache, e *Entry) string {
	t.Helper()
	var buf [2]byte
	err := c.Do(e, Normal, func(f *os.File) error {
		_, err := io.ReadFull(f, buf[:])
		return err
	})
	if err != nil {
		t.Fatalf("reading %s: %v", e.Name, err)
	}
	return string(buf[:])
}

func isOpen(e *Entry) bool {
	return e.File() != nil
}

func TestLRU(t *testing.T) {
	c := New(WithMaxOpen(3))
	es := makeFiles(t, 4)
	for _, e := range es[:3] {
		if _, err := c.OpenFile(e); err != nil {
			t.Fatal(err)
		}
	}
	// Touch the entries so that es[2] is least recently used.
	for _, i := range []int{2, 1, 0} {
		read2(t, c, es[i])
	}
	if _, err := c.OpenFile(es[3]); err != nil {
		t.Fatal(err)
	}
	if isOpen(es[2]) || !es[2].ClosedByCache {
		t.Errorf("least recently used entry was not evicted")
	}
	for _, i := range []int{0, 1, 3} {
		if !isOpen(es[i]) {
			t.Errorf("entry %d was evicted", i)
		}
	}
	if got := c.OpenCount(); got != 3 {
		t.Errorf("OpenCount = %d; want 3", got)
	}
}

func TestCapacity(t *testing.T) {
	const maxOpen, nfiles = 10, 15
	c := New(WithMaxOpen(maxOpen))
	es := makeFiles(t, nfiles)
	for _, e := range es {
		if _, err := c.OpenFile(e); err != nil {
			t.Fatal(err)
		}
		if got := c.OpenCount(); got > maxOpen {
			t.Fatalf("OpenCount = %d after open; want <= %d", got, maxOpen)
		}
	}

	// Each file is read two bytes at a time. Reopened files must
	// resume where they were evicted.
	pos := make([]int, nfiles)
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 200; iter++ {
		i := rng.Intn(nfiles)
		if pos[i] == 4 {
			continue
		}
		if got, want := read2(t, c, es[i]), chunk(i, pos[i]); got != want {
			t.Fatalf("read %q from file %d at chunk %d; want %q", got, i, pos[i], want)
		}
		pos[i]++
		if got := c.OpenCount(); got > maxOpen {
			t.Fatalf("OpenCount = %d; want <= %d", got, maxOpen)
		}
		n := 0
		for _, e := range es {
			if isOpen(e) {
				n++
			}
		}
		if n != c.OpenCount() {
			t.Fatalf("%d entries open but OpenCount = %d", n, c.OpenCount())
		}
	}
	if st := c.Stats(); st.Evictions == 0 || st.Reopens == 0 {
		t.Errorf("Stats = %+v; want evictions and reopens", st)
	}
	if err := c.CloseAll(); err != nil {
		t.Fatal(err)
	}
	if got := c.OpenCount(); got != 0 {
		t.Errorf("OpenCount after CloseAll = %d", got)
	}
}

func TestPinned(t *testing.T) {
	c := New(WithMaxOpen(2))
	es := makeFiles(t, 3)
	f, err := os.Open(es[0].Name)
	if err != nil {
		t.Fatal(err)
	}
	c.Register(es[0], f)
	for _, e := range es[1:] {
		if _, err := c.OpenFile(e); err != nil {
			t.Fatal(err)
		}
	}
	if !isOpen(es[0]) {
		t.Errorf("pinned entry was evicted")
	}
	if isOpen(es[1]) {
		t.Errorf("cacheable entry was not evicted")
	}

	// With only pinned entries left, the cache runs over capacity.
	c2 := New(WithMaxOpen(1))
	for _, e := range makeFiles(t, 2) {
		f, err := os.Open(e.Name)
		if err != nil {
			t.Fatal(err)
		}
		c2.Register(e, f)
	}
	if got := c2.OpenCount(); got != 2 {
		t.Errorf("OpenCount with two pinned entries = %d; want 2", got)
	}
}

func TestNoOpen(t *testing.T) {
	c := New(WithMaxOpen(1))
	es := makeFiles(t, 2)
	c.OpenFile(es[0])
	c.OpenFile(es[1])
	called := false
	err := c.Do(es[0], NoOpen, func(*os.File) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNotOpen) || called {
		t.Errorf("Do(NoOpen) on closed entry = %v, called=%v", err, called)
	}
	if isOpen(es[0]) || !isOpen(es[1]) {
		t.Errorf("Do(NoOpen) changed the cache")
	}
}

func TestReopenFailure(t *testing.T) {
	c := New(WithMaxOpen(1))
	es := makeFiles(t, 2)
	c.OpenFile(es[0])
	c.OpenFile(es[1])
	os.Remove(es[0].Name)
	for i := 0; i < 2; i++ {
		err := c.Do(es[0], Normal, func(*os.File) error { return nil })
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("attempt %d: got %v; want not exist", i, err)
		}
	}
}

func TestWriteMode(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(name, []byte("old contents"), 0666); err != nil {
		t.Fatal(err)
	}

	c := New()
	e := &Entry{Name: name, Mode: ModeWrite}
	f, err := c.OpenFile(e)
	if err != nil {
		t.Fatal(err)
	}
	if !e.OpenedOnce {
		t.Errorf("OpenedOnce not set")
	}
	if fi, err := f.Stat(); err != nil || fi.Size() != 0 {
		t.Errorf("existing output was not truncated: %v, %v", fi, err)
	}
	f.Write([]byte("new"))
	if err := c.Close(e); err != nil {
		t.Fatal(err)
	}
	// None of the old bytes survive past the new ones.
	if data, _ := os.ReadFile(name); string(data) != "new" {
		t.Errorf("contents after first write = %q; want %q", data, "new")
	}

	// A second open keeps the contents.
	if _, err := c.OpenFile(e); err != nil {
		t.Fatal(err)
	}
	c.Close(e)
	if data, _ := os.ReadFile(name); string(data) != "new" {
		t.Errorf("contents after reopen = %q; want %q", data, "new")
	}
}

func TestCloseAllErrors(t *testing.T) {
	c := New()
	es := makeFiles(t, 3)
	for _, e := range es {
		c.OpenFile(e)
	}
	es[1].File().Close()
	err := c.CloseAll()
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 1 {
		t.Errorf("CloseAll = %v; want one error", err)
	}
	if got := c.OpenCount(); got != 0 {
		t.Errorf("OpenCount after CloseAll = %d", got)
	}
	for _, e := range es {
		if c.Contains(e) {
			t.Errorf("%s still in ring", e.Name)
		}
	}
}

func TestMaxOpenDefault(t *testing.T) {
	if got := New().MaxOpen(); got < 10 {
		t.Errorf("MaxOpen = %d; want >= 10", got)
	}
}
