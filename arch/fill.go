// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import "encoding/binary"

// x86Nops are the recommended multi-byte NOP encodings, indexed by
// length.
var x86Nops = [...][]byte{
	1: {0x90},
	2: {0x66, 0x90},
	3: {0x0f, 0x1f, 0x00},
	4: {0x0f, 0x1f, 0x40, 0x00},
	5: {0x0f, 0x1f, 0x44, 0x00, 0x00},
	6: {0x66, 0x0f, 0x1f, 0x44, 0x00, 0x00},
	7: {0x0f, 0x1f, 0x80, 0x00, 0x00, 0x00, 0x00},
	8: {0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

type i386Behavior struct{ DefaultBehavior }

// Fill pads code with the longest available NOPs.
func (i386Behavior) Fill(count int, bigEndian, code bool) []byte {
	buf := make([]byte, max(count, 0))
	if !code {
		return buf
	}
	for p := buf; len(p) > 0; {
		nop := x86Nops[min(len(p), len(x86Nops)-1)]
		p = p[copy(p, nop):]
	}
	return buf
}

// The 8086 has no multi-byte NOP.
type i8086Behavior struct{ i386Behavior }

func (i8086Behavior) Fill(count int, bigEndian, code bool) []byte {
	buf := make([]byte, max(count, 0))
	if code {
		for i := range buf {
			buf[i] = 0x90
		}
	}
	return buf
}

type powerpcBehavior struct{ DefaultBehavior }

const ppcNop = 0x60000000 // ori 0,0,0

// Fill pads code with nop instructions in the requested byte order.
// A trailing partial word is zeroed.
func (powerpcBehavior) Fill(count int, bigEndian, code bool) []byte {
	buf := make([]byte, max(count, 0))
	if !code {
		return buf
	}
	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	for i := 0; i+4 <= len(buf); i += 4 {
		order.PutUint32(buf[i:], ppcNop)
	}
	return buf
}
