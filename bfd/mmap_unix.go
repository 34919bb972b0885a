// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package bfd

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps length bytes of f at offset. The mapping starts at
// the enclosing page boundary.
func mmapFile(f *os.File, offset int64, length int) ([]byte, func() error, error) {
	page := int64(os.Getpagesize())
	start := offset &^ (page - 1)
	delta := int(offset - start)
	m, err := unix.Mmap(int(f.Fd()), start, length+delta, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return m[delta:], func() error { return unix.Munmap(m) }, nil
}
