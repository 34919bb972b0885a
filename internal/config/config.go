// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds settings that come from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/xyproto/env/v2"
)

// Environment variables.
const (
	EnvDebugFileDirectory = "BFD_DEBUG_FILE_DIRECTORY"
	EnvExtraDebugRoots    = "BFD_EXTRA_DEBUG_ROOTS"
	EnvCacheMaxOpen       = "BFD_CACHE_MAX_OPEN"
	EnvTarget             = "GNUTARGET"
)

// Defaults.
const (
	DefaultDebugFileDirectory = "/usr/lib/debug"
	DefaultTarget             = "default"
)

// DefaultExtraDebugRoots are searched, joined with an object's
// canonical directory, for separate debug files.
var DefaultExtraDebugRoots = []string{"/usr/lib/debug", "/usr/lib/debug/usr"}

// Config is the process-level configuration of a bfd.Context.
type Config struct {
	// DebugFileDirectory is the global debug root searched last.
	DebugFileDirectory string
	// ExtraDebugRoots are searched before DebugFileDirectory.
	ExtraDebugRoots []string
	// MaxOpen caps the file handle cache. Zero computes it from
	// the process file limit.
	MaxOpen int
	// DefaultTarget is the target used when none is named.
	DefaultTarget string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DebugFileDirectory: DefaultDebugFileDirectory,
		ExtraDebugRoots:    append([]string(nil), DefaultExtraDebugRoots...),
		DefaultTarget:      DefaultTarget,
	}
}

// FromEnv returns Defaults overridden by the environment.
// BFD_EXTRA_DEBUG_ROOTS is a shell-quoted list; set it to the empty
// string to disable the extra roots.
func FromEnv() (Config, error) {
	// env caches the environment on first use.
	env.Load()
	c := Defaults()
	c.DebugFileDirectory = env.Str(EnvDebugFileDirectory, c.DebugFileDirectory)
	if v, ok := os.LookupEnv(EnvExtraDebugRoots); ok {
		roots, err := shellquote.Split(v)
		if err != nil {
			return c, fmt.Errorf("parsing %s: %v", EnvExtraDebugRoots, err)
		}
		c.ExtraDebugRoots = roots
	}
	c.MaxOpen = env.Int(EnvCacheMaxOpen, 0)
	if c.MaxOpen < 0 {
		return c, fmt.Errorf("%s must not be negative", EnvCacheMaxOpen)
	}
	c.DefaultTarget = env.Str(EnvTarget, c.DefaultTarget)
	return c, nil
}
