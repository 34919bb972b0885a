// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"hash/crc32"
	"io"
	"os"
)

// CalcGNUDebuglinkCRC32 continues the .gnu_debuglink CRC crc over
// buf. Start with 0. GNU tools store this standard reflected CRC-32
// of the whole debug file.
func CalcGNUDebuglinkCRC32(crc uint32, buf []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, buf)
}

// fileCRC returns the debuglink CRC of the named file's bytes.
func fileCRC(name string) (uint32, error) {
	fp, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer fp.Close()

	var crc uint32
	buf := make([]byte, 8*1024)
	for {
		n, err := fp.Read(buf)
		crc = CalcGNUDebuglinkCRC32(crc, buf[:n])
		if err == io.EOF {
			return crc, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
