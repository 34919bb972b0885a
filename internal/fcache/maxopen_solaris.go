// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build solaris && !amd64

package fcache

// 32-bit Solaris stdio cannot use descriptors above 255, whatever
// RLIMIT_NOFILE says.
func platformMaxOpen() int {
	return 16
}
