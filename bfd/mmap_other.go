// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package bfd

import "os"

// mmapFile reads length bytes of f at offset into a private buffer.
func mmapFile(f *os.File, offset int64, length int) ([]byte, func() error, error) {
	b := make([]byte, length)
	if _, err := f.ReadAt(b, offset); err != nil {
		return nil, nil, err
	}
	return b, func() error { return nil }, nil
}
