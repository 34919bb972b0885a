// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package bfd

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// execMode adds to mode the execute bits the process umask permits.
// Reading the umask means setting it, so this races with anything
// else in the process that creates files.
func execMode(mode fs.FileMode) fs.FileMode {
	mask := unix.Umask(0)
	unix.Umask(mask)
	return (mode | fs.FileMode(0o111&^mask)) & 0o777
}

// fdMode returns the fopen mode matching fd's access mode.
func fdMode(fd int) (string, error) {
	fl, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return "", err
	}
	if fl&unix.O_ACCMODE == unix.O_RDONLY {
		return "rb", nil
	}
	return "r+b", nil
}
