// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fcache multiplexes many logical files over a bounded
// number of open OS files.
//
// Each Entry names a file on disk. The Cache keeps the most recently
// used entries open and closes the least recently used cacheable
// entry when it needs room, recording its offset so a later access can
// transparently reopen the file and seek back.
package fcache

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// A Flag modifies how Do obtains an entry's file.
type Flag int

const (
	// Normal reopens the file if needed and restores its offset.
	Normal Flag = 0
	// NoOpen fails rather than reopening a closed file.
	NoOpen Flag = 1 << 0
	// NoSeek skips restoring the offset after a reopen.
	NoSeek Flag = 1 << 1
	// NoSeekError ignores failure to restore the offset.
	NoSeekError Flag = 1 << 2
)

// A Mode is the access an entry's file is opened for.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeBoth
)

// ErrNotOpen is returned by Do with NoOpen when the entry has no
// open file.
var ErrNotOpen = errors.New("file is not open")

// An Entry is one logical file known to a Cache.
type Entry struct {
	Name string
	Mode Mode

	// Cacheable permits the cache to close the file and reopen
	// it later by Name. Files opened from a caller's descriptor
	// are not cacheable.
	Cacheable bool
	// OpenedOnce is set after the first open of a write-mode
	// entry. Later opens must not truncate the file.
	OpenedOnce bool
	// ClosedByCache is set when the file was closed by the cache
	// rather than by the entry's owner.
	ClosedByCache bool
	// Where is the offset to restore when the file is reopened.
	Where int64

	// Parent, if non-nil, is the entry whose file this entry
	// reads. Archive members use their archive's file.
	Parent *Entry

	file       *os.File
	prev, next *Entry
}

// File returns e's open file, or nil if it is not open.
func (e *Entry) File() *os.File {
	return e.file
}

// Stats counts cache activity.
type Stats struct {
	Hits      int // accesses to the most recently used entry
	Opens     int // first opens
	Reopens   int // opens of an entry closed by the cache
	Evictions int
}

// A Cache is a ring of entries in most-recently-used order plus a
// count of open files. It is safe for concurrent use, but a single
// Entry must not be used from multiple goroutines at once.
type Cache struct {
	mu    sync.Mutex
	head  *Entry // most recently used
	open  int
	max   int
	stats Stats
	log   *zap.Logger
}

// An Option configures a Cache.
type Option func(*Cache)

// WithMaxOpen sets the number of files the cache keeps open. Values
// below 1 select the platform default.
func WithMaxOpen(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithLogger sets the logger for evictions and reopen failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MaxOpen returns the number of files the cache keeps open. Unless
// set with WithMaxOpen, it is max(10, RLIMIT_NOFILE/8), computed on
// first use.
func (c *Cache) MaxOpen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxOpen()
}

func (c *Cache) maxOpen() int {
	if c.max == 0 {
		c.max = platformMaxOpen()
	}
	return c.max
}

// OpenCount returns the number of entries with an open file.
func (c *Cache) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Do runs fn with e's file, opening it first if necessary. fn runs
// with the cache locked, so it must not call back into the cache.
func (c *Cache) Do(e *Entry, flag Flag, fn func(f *os.File) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.lookup(e, flag)
	if err != nil {
		return err
	}
	return fn(f)
}

func (c *Cache) lookup(e *Entry, flag Flag) (*os.File, error) {
	if e == c.head && e.file != nil {
		c.stats.Hits++
		return e.file, nil
	}
	for e.Parent != nil {
		e = e.Parent
	}
	if e.file != nil {
		if e != c.head {
			c.snip(e)
			c.insert(e)
		}
		return e.file, nil
	}
	if flag&NoOpen != 0 {
		return nil, ErrNotOpen
	}

	reopen := e.ClosedByCache
	f, err := c.openFile(e)
	if err == nil && flag&NoSeek == 0 {
		if _, serr := f.Seek(e.Where, io.SeekStart); serr != nil && flag&NoSeekError == 0 {
			err = serr
		}
	}
	if err != nil {
		c.log.Error("reopening "+e.Name, zap.Error(err))
		return nil, err
	}
	if reopen {
		c.stats.Reopens++
		c.log.Debug("reopened", zap.String("file", e.Name), zap.Int64("offset", e.Where))
	}
	return f, nil
}

// Register adds e, whose file is f, to the cache as the most
// recently used entry, evicting another entry first if the cache is
// full.
func (c *Cache) Register(e *Entry, f *os.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.register(e, f)
}

func (c *Cache) register(e *Entry, f *os.File) {
	if c.open >= c.maxOpen() {
		c.evictOne()
	}
	e.file = f
	c.insert(e)
	e.ClosedByCache = false
	c.open++
}

// OpenFile opens e's file according to its mode and registers it.
// It marks e cacheable.
//
// A write-mode entry's first open creates or truncates the file,
// removing an existing non-empty regular file first so that a
// running executable is replaced rather than overwritten. Later
// opens reuse the file without truncating it.
func (c *Cache) OpenFile(e *Entry) (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openFile(e)
}

func (c *Cache) openFile(e *Entry) (*os.File, error) {
	e.Cacheable = true
	if c.open >= c.maxOpen() {
		c.evictOne()
	}

	var f *os.File
	var err error
	switch e.Mode {
	case ModeRead:
		f, err = os.Open(e.Name)
	default:
		if e.OpenedOnce {
			f, err = os.OpenFile(e.Name, os.O_RDWR, 0)
			if err != nil {
				f, err = os.OpenFile(e.Name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
			}
		} else {
			if fi, serr := os.Stat(e.Name); serr == nil && fi.Size() != 0 {
				removeIfOrdinary(e.Name)
			}
			f, err = os.OpenFile(e.Name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
			e.OpenedOnce = true
		}
	}
	if err != nil {
		return nil, err
	}
	if !e.ClosedByCache {
		c.stats.Opens++
	}
	c.register(e, f)
	return f, nil
}

func removeIfOrdinary(name string) {
	fi, err := os.Lstat(name)
	if err != nil {
		return
	}
	if fi.Mode().IsRegular() || fi.Mode()&os.ModeSymlink != 0 {
		os.Remove(name)
	}
}

// evictOne closes the least recently used cacheable entry. Entries
// that are not cacheable are skipped. If none is cacheable it does
// nothing and the cache runs over capacity.
func (c *Cache) evictOne() {
	if c.head == nil {
		return
	}
	victim := c.head.prev
	for !victim.Cacheable {
		if victim == c.head {
			return
		}
		victim = victim.prev
	}
	if where, err := victim.file.Seek(0, io.SeekCurrent); err == nil {
		victim.Where = where
	}
	c.stats.Evictions++
	c.log.Debug("evicting", zap.String("file", victim.Name), zap.Int64("offset", victim.Where))
	c.delete(victim)
}

// delete closes e's file and removes it from the ring.
func (c *Cache) delete(e *Entry) error {
	err := e.file.Close()
	c.snip(e)
	e.file = nil
	c.open--
	e.ClosedByCache = true
	return err
}

// Close closes e's file, if open, and removes e from the cache.
func (c *Cache) Close(e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.file == nil {
		return nil
	}
	return c.delete(e)
}

// CloseAll closes every open file. It continues past failures and
// returns all of them.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result error
	for c.head != nil {
		if err := c.delete(c.head); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Contains reports whether e is currently in the ring.
func (c *Cache) Contains(e *Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.next != nil
}

// insert links e at the head of the ring.
func (c *Cache) insert(e *Entry) {
	if c.head == nil {
		e.next, e.prev = e, e
	} else {
		e.next = c.head
		e.prev = c.head.prev
		e.prev.next = e
		e.next.prev = e
	}
	c.head = e
}

// snip unlinks e from the ring.
func (c *Cache) snip(e *Entry) {
	e.next.prev = e.prev
	e.prev.next = e.next
	if c.head == e {
		c.head = e.next
		if c.head == e {
			c.head = nil
		}
	}
	e.next, e.prev = nil, nil
}
