// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix && !(solaris && !amd64)

package fcache

import (
	"math"

	"golang.org/x/sys/unix"
)

func platformMaxOpen() int {
	n := 10
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err == nil {
		cur := uint64(rlim.Cur)
		if cur != math.MaxUint64 && cur != math.MaxInt64 {
			n = int(cur / 8)
		}
	}
	return max(n, 10)
}
