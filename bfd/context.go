// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"sync"

	"github.com/aclements/go-bfd/arch"
	"github.com/aclements/go-bfd/internal/config"
	"github.com/aclements/go-bfd/internal/fcache"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// A Context holds the process-level state shared by Files: the file
// handle cache, the architecture and target registries, configuration,
// and the id counters. Every File belongs to exactly one Context.
type Context struct {
	cfg     config.Config
	cache   *fcache.Cache
	archs   *arch.Registry
	targets []*Target
	log     *zap.Logger

	// canonDirs memoizes the symlink-resolved directory of object
	// files for separate debug file searches.
	canonDirs *lru.Cache[string, string]

	mu           sync.Mutex
	nextID       uint32
	nextReserved uint32 // decremented before use, so starts at the top
	useReserved  uint32
	live         int
}

// An Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used by the context and its cache.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithConfig replaces the context's configuration.
func WithConfig(cfg config.Config) Option {
	return func(c *Context) { c.cfg = cfg }
}

// WithMaxOpen caps the number of files the context keeps open.
func WithMaxOpen(n int) Option {
	return func(c *Context) { c.cfg.MaxOpen = n }
}

// WithArchRegistry replaces the architecture registry.
func WithArchRegistry(r *arch.Registry) Option {
	return func(c *Context) { c.archs = r }
}

const canonDirCacheSize = 64

// NewContext returns a context with the built-in targets and
// architectures. Without WithConfig it uses config.Defaults.
func NewContext(opts ...Option) *Context {
	c := &Context{
		cfg:   config.Defaults(),
		archs: arch.Default,
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.cache = fcache.New(fcache.WithMaxOpen(c.cfg.MaxOpen), fcache.WithLogger(c.log))
	c.targets = builtinTargets()
	c.canonDirs, _ = lru.New[string, string](canonDirCacheSize)
	return c
}

var defaultContext = sync.OnceValue(func() *Context {
	cfg, err := config.FromEnv()
	c := NewContext(WithConfig(cfg))
	if err != nil {
		c.log.Error("reading configuration", zap.Error(err))
	}
	return c
})

// Default returns the context configured from the environment. It is
// created on first use.
func Default() *Context {
	return defaultContext()
}

// Config returns the context's configuration.
func (c *Context) Config() config.Config { return c.cfg }

// Cache returns the context's file handle cache.
func (c *Context) Cache() *fcache.Cache { return c.cache }

// Archs returns the context's architecture registry.
func (c *Context) Archs() *arch.Registry { return c.archs }

// Logger returns the context's logger.
func (c *Context) Logger() *zap.Logger { return c.log }

// Live returns the number of Files created in c and not yet closed.
func (c *Context) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// UseReservedIDs makes the next n Files take ids from the reserved
// range, which counts down from the top of the uint32 range, instead
// of the normal increasing sequence.
func (c *Context) UseReservedIDs(n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.useReserved = n
}

func (c *Context) newID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live++
	if c.useReserved == 0 {
		id := c.nextID
		c.nextID++
		return id
	}
	c.useReserved--
	c.nextReserved--
	return c.nextReserved
}

func (c *Context) release() {
	c.mu.Lock()
	c.live--
	c.mu.Unlock()
}
