// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

// An Arena owns the derived data of one File: section contents,
// staged compressed bytes, build IDs and the like. Everything
// allocated from it is dropped at once when the File is closed.
//
// Allocations are tracked so that Release can drop everything
// allocated after a Mark, which backends use to undo a failed
// partial parse.
type Arena struct {
	blocks [][]byte
	size   int64
}

// A Mark identifies a point in an Arena's allocation history.
type Mark int

// Alloc returns n zeroed bytes.
func (a *Arena) Alloc(n int) []byte {
	b := make([]byte, n)
	a.blocks = append(a.blocks, b)
	a.size += int64(n)
	return b
}

// Copy returns an arena-owned copy of b.
func (a *Arena) Copy(b []byte) []byte {
	c := a.Alloc(len(b))
	copy(c, b)
	return c
}

// Mark returns the current allocation point.
func (a *Arena) Mark() Mark {
	return Mark(len(a.blocks))
}

// Release drops every allocation made since m.
func (a *Arena) Release(m Mark) {
	if int(m) >= len(a.blocks) {
		return
	}
	for _, b := range a.blocks[m:] {
		a.size -= int64(len(b))
	}
	clear(a.blocks[m:])
	a.blocks = a.blocks[:m]
}

// Free drops every allocation.
func (a *Arena) Free() {
	a.Release(0)
	a.blocks = nil
}

// Size returns the number of bytes currently allocated.
func (a *Arena) Size() int64 {
	return a.size
}
