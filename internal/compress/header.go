// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress encodes and decodes compressed object file
// sections.
//
// Two containers are supported. The legacy container is the four
// bytes "ZLIB" followed by the big-endian 64-bit uncompressed size.
// The ELF container is an Elf32_Chdr or Elf64_Chdr in the file's byte
// order, which also records the compression method and the
// uncompressed alignment.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// A Method is a compression algorithm, numbered as in ELF ch_type.
type Method uint32

const (
	None Method = 0
	Zlib Method = 1
	Zstd Method = 2
)

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("Method(%d)", uint32(m))
}

// Header sizes.
const (
	LegacyHeaderSize = 12
	Chdr32Size       = 12
	Chdr64Size       = 24
)

// ChdrSize returns the size of the ELF compression header for the
// given class.
func ChdrSize(is64 bool) int {
	if is64 {
		return Chdr64Size
	}
	return Chdr32Size
}

// A Header describes a compressed payload.
type Header struct {
	Method Method
	// Size is the uncompressed size.
	Size uint64
	// AlignPower is log2 of the uncompressed alignment.
	AlignPower uint
}

var legacyMagic = [4]byte{'Z', 'L', 'I', 'B'}

// ErrBadHeader is returned when a compression header is present but
// inconsistent.
var ErrBadHeader = errors.New("malformed compression header")

// ParseLegacy decodes a legacy "ZLIB" header from the start of b. It
// reports false if b does not start with one.
func ParseLegacy(b []byte) (Header, bool) {
	if len(b) < LegacyHeaderSize || [4]byte(b[:4]) != legacyMagic {
		return Header{}, false
	}
	return Header{Method: Zlib, Size: binary.BigEndian.Uint64(b[4:])}, true
}

// PutLegacy encodes a legacy header for size into b, which must be
// at least LegacyHeaderSize bytes.
func PutLegacy(b []byte, size uint64) {
	copy(b, legacyMagic[:])
	binary.BigEndian.PutUint64(b[4:], size)
}

// ParseChdr decodes an ELF compression header. The method must be
// zlib or zstd and the alignment a power of two (or zero).
func ParseChdr(b []byte, is64 bool, order binary.ByteOrder) (Header, error) {
	var (
		typ   uint32
		size  uint64
		align uint64
	)
	if is64 {
		if len(b) < Chdr64Size {
			return Header{}, ErrBadHeader
		}
		typ = order.Uint32(b[0:])
		size = order.Uint64(b[8:])
		align = order.Uint64(b[16:])
	} else {
		if len(b) < Chdr32Size {
			return Header{}, ErrBadHeader
		}
		typ = order.Uint32(b[0:])
		size = uint64(order.Uint32(b[4:]))
		align = uint64(order.Uint32(b[8:]))
	}
	m := Method(typ)
	if m != Zlib && m != Zstd {
		return Header{}, fmt.Errorf("%w: method %d", ErrBadHeader, typ)
	}
	if align&(align-1) != 0 {
		return Header{}, fmt.Errorf("%w: alignment %#x", ErrBadHeader, align)
	}
	h := Header{Method: m, Size: size}
	if align != 0 {
		h.AlignPower = uint(bits.TrailingZeros64(align))
	}
	return h, nil
}

// PutChdr encodes h as an ELF compression header into b.
func PutChdr(b []byte, is64 bool, order binary.ByteOrder, h Header) {
	align := uint64(1) << h.AlignPower
	if is64 {
		order.PutUint32(b[0:], uint32(h.Method))
		order.PutUint32(b[4:], 0)
		order.PutUint64(b[8:], h.Size)
		order.PutUint64(b[16:], align)
		return
	}
	order.PutUint32(b[0:], uint32(h.Method))
	order.PutUint32(b[4:], uint32(h.Size))
	order.PutUint32(b[8:], uint32(align))
}
