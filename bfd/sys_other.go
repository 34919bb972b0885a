// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package bfd

import "io/fs"

func execMode(mode fs.FileMode) fs.FileMode {
	return mode.Perm() | 0o111
}

// fdMode assumes full access, since the access mode of a descriptor
// cannot be queried here.
func fdMode(fd int) (string, error) {
	return "r+b", nil
}
