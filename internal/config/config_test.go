// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"reflect"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, v := range []string{EnvDebugFileDirectory, EnvExtraDebugRoots, EnvCacheMaxOpen, EnvTarget} {
		t.Setenv(v, "") // restored at cleanup
		os.Unsetenv(v)
	}
	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c, Defaults()) {
		t.Errorf("FromEnv() = %+v; want %+v", c, Defaults())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvDebugFileDirectory, "/opt/debug")
	t.Setenv(EnvExtraDebugRoots, `/a "/b c"`)
	t.Setenv(EnvCacheMaxOpen, "12")
	t.Setenv(EnvTarget, "elf64-little")
	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		DebugFileDirectory: "/opt/debug",
		ExtraDebugRoots:    []string{"/a", "/b c"},
		MaxOpen:            12,
		DefaultTarget:      "elf64-little",
	}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("FromEnv() = %+v; want %+v", c, want)
	}
}

func TestFromEnvErrors(t *testing.T) {
	t.Setenv(EnvExtraDebugRoots, `"unterminated`)
	if _, err := FromEnv(); err == nil {
		t.Errorf("unterminated quote accepted")
	}
	t.Setenv(EnvExtraDebugRoots, "")
	t.Setenv(EnvCacheMaxOpen, "-3")
	if _, err := FromEnv(); err == nil {
		t.Errorf("negative cache size accepted")
	}
}

func TestFromEnvRereads(t *testing.T) {
	tests := []struct {
		name, value string
		check       func(Config) bool
	}{
		{EnvCacheMaxOpen, "12", func(c Config) bool { return c.MaxOpen == 12 }},
		{EnvDebugFileDirectory, "/opt/debug", func(c Config) bool { return c.DebugFileDirectory == "/opt/debug" }},
		{EnvTarget, "elf32-big", func(c Config) bool { return c.DefaultTarget == "elf32-big" }},
	}
	for _, test := range tests {
		t.Setenv(test.name, "")
		os.Unsetenv(test.name)
		if _, err := FromEnv(); err != nil {
			t.Fatal(err)
		}
		t.Setenv(test.name, test.value)
		c, err := FromEnv()
		if err != nil {
			t.Fatal(err)
		}
		if !test.check(c) {
			t.Errorf("after setting %s=%s, FromEnv() = %+v", test.name, test.value, c)
		}
	}
}
