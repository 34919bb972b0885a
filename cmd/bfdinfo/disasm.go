// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/ppc64/ppc64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/aclements/go-bfd/arch"
)

// An inst is one decoded instruction.
type inst struct {
	pc   uint64
	enc  []byte
	text string
}

type symLookup func(addr uint64) (string, uint64)

// decoder decodes the instruction at the start of text, which is at
// address pc. It returns the instruction's Go syntax and length. A
// failed decode returns length 0. mem reads the surrounding code by
// address, for literal pools.
type decoder func(text []byte, pc uint64, symname symLookup, mem io.ReaderAt) (string, int)

// textAt reads data as if it were loaded at base.
type textAt struct {
	base uint64
	data []byte
}

func (t *textAt) ReadAt(p []byte, addr int64) (int, error) {
	if uint64(addr) < t.base || uint64(addr)-t.base >= uint64(len(t.data)) {
		return 0, io.EOF
	}
	n := copy(p, t.data[uint64(addr)-t.base:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func decoderFor(info *arch.Info, order binary.ByteOrder) (decoder, error) {
	switch info.Arch {
	case arch.ArchI386:
		mode := 32
		if info.BitsPerAddress == 64 {
			mode = 64
		}
		return func(text []byte, pc uint64, symname symLookup, mem io.ReaderAt) (string, int) {
			in, err := x86asm.Decode(text, mode)
			if err != nil || in.Len == 0 || in.Op == 0 {
				return "?", 0
			}
			return x86asm.GoSyntax(in, pc, x86asm.SymLookup(symname)), in.Len
		}, nil

	case arch.ArchAArch64:
		return func(text []byte, pc uint64, symname symLookup, mem io.ReaderAt) (string, int) {
			in, err := arm64asm.Decode(text)
			if err != nil {
				return "?", 0
			}
			return arm64asm.GoSyntax(in, pc, symname, mem), 4
		}, nil

	case arch.ArchARM:
		return func(text []byte, pc uint64, symname symLookup, mem io.ReaderAt) (string, int) {
			in, err := armasm.Decode(text, armasm.ModeARM)
			if err != nil || in.Len == 0 {
				return "?", 0
			}
			return armasm.GoSyntax(in, pc, symname, mem), in.Len
		}, nil

	case arch.ArchPowerPC:
		if info.BitsPerWord != 64 {
			break
		}
		return func(text []byte, pc uint64, symname symLookup, mem io.ReaderAt) (string, int) {
			in, err := ppc64asm.Decode(text, order)
			if err != nil || in.Len == 0 {
				return "?", 0
			}
			return ppc64asm.GoSyntax(in, pc, symname), in.Len
		}, nil
	}
	return nil, fmt.Errorf("cannot disassemble %s", info)
}

// disasm decodes all of text, which starts at pc. Undecodable bytes
// become one-byte "?" instructions.
func disasm(dec decoder, text []byte, pc uint64, symname symLookup) []inst {
	mem := &textAt{pc, text}
	var out []inst
	for len(text) > 0 {
		s, size := dec(text, pc, symname, mem)
		if size == 0 {
			s, size = "?", 1
		}
		if size > len(text) {
			size = len(text)
		}
		out = append(out, inst{pc, text[:size], s})
		text = text[size:]
		pc += uint64(size)
	}
	return out
}
