// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/elf"
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-bfd/internal/compress"
	"go.uber.org/zap"
)

// A CompressStatus is the compression state of a section.
type CompressStatus int

const (
	// CompressNone means the stored bytes are used as they are.
	CompressNone CompressStatus = iota
	// DecompressZlib and DecompressZstd mean the section is
	// compressed in the file and its logical bytes are produced by
	// decompressing on access.
	DecompressZlib
	DecompressZstd
	// CompressDone means the section holds staged compressed bytes
	// for output.
	CompressDone
)

func (s CompressStatus) String() string {
	switch s {
	case CompressNone:
		return "none"
	case DecompressZlib:
		return "decompress-zlib"
	case DecompressZstd:
		return "decompress-zstd"
	case CompressDone:
		return "compressed"
	}
	return fmt.Sprintf("CompressStatus(%d)", int(s))
}

const shfCompressed = uint64(elf.SHF_COMPRESSED)

// CompressionHeaderSize returns the size of s's ELF compression
// header, or 0 if s has none (it may still use the legacy "ZLIB"
// container). A nil s asks what output sections will use.
func (f *File) CompressionHeaderSize(s *Section) int {
	if f.target == nil || f.target.Flavour != FlavourELF {
		return 0
	}
	if s == nil {
		if f.flags&(CompressGABI|CompressZstd) == 0 {
			return 0
		}
	} else if s.ELFFlags&shfCompressed == 0 {
		return 0
	}
	return compress.ChdrSize(f.target.Is64)
}

// CompressionInfo describes how a section is stored.
type CompressionInfo struct {
	Compressed bool
	// HeaderSize is the ELF compression header size, 0 for the
	// legacy container or none, or -1 if the section claims an
	// ELF header that is not valid.
	HeaderSize int
	// Legacy is set for the "ZLIB" container.
	Legacy     bool
	Method     compress.Method
	Size       uint64 // uncompressed
	AlignPower uint   // uncompressed
}

func (ci CompressionInfo) method() compress.Method {
	if ci.Method == compress.Zstd {
		return compress.Zstd
	}
	return compress.Zlib
}

// SectionCompressionInfo inspects the start of s's stored bytes.
func (f *File) SectionCompressionInfo(s *Section) CompressionInfo {
	hdrSize := f.CompressionHeaderSize(s)
	n := hdrSize
	if n == 0 {
		n = compress.LegacyHeaderSize
	}
	saved := s.status
	s.status = CompressNone
	defer func() { s.status = saved }()

	info := CompressionInfo{HeaderSize: hdrSize, Size: s.Size}
	hdr := make([]byte, n)
	if f.SectionContents(s, hdr, 0) != nil {
		return info
	}
	if hdrSize != 0 {
		info.Compressed = true
		h, err := compress.ParseChdr(hdr, f.target.Is64, f.target.ByteOrder)
		if err != nil {
			info.HeaderSize = -1
			return info
		}
		info.Method, info.Size, info.AlignPower = h.Method, h.Size, h.AlignPower
		return info
	}
	h, ok := compress.ParseLegacy(hdr)
	if !ok {
		return info
	}
	// A .debug_str may legitimately start with the string "ZLIB".
	// No real uncompressed .debug_str is big enough for the first
	// byte of its big-endian size to be nonzero.
	if s.Name == ".debug_str" && isPrint(hdr[4]) {
		return info
	}
	info.Compressed, info.Legacy = true, true
	info.Method, info.Size = h.Method, h.Size
	return info
}

func isPrint(b byte) bool { return ' ' <= b && b <= '~' }

// InitSectionDecompressStatus arranges for s, which is compressed in
// the file, to be decompressed on access. s's size becomes the
// uncompressed size and its alignment the uncompressed alignment.
func (f *File) InitSectionDecompressStatus(s *Section) error {
	op := "decompress " + s.Name
	hdrSize := f.CompressionHeaderSize(s)
	n := hdrSize
	if n == 0 {
		n = compress.LegacyHeaderSize
	}
	if s.CompressedSize != 0 || s.contents != nil || s.status != CompressNone {
		return newError(KindInvalidOperation, op, f.filename, nil)
	}
	hdr := make([]byte, n)
	if err := f.SectionContents(s, hdr, 0); err != nil {
		return newError(KindInvalidOperation, op, f.filename, err)
	}

	var h compress.Header
	if hdrSize == 0 {
		var ok bool
		if h, ok = compress.ParseLegacy(hdr); !ok {
			return newError(KindWrongFormat, op, f.filename, nil)
		}
	} else {
		var err error
		if h, err = compress.ParseChdr(hdr, f.target.Is64, f.target.ByteOrder); err != nil {
			return newError(KindWrongFormat, op, f.filename, err)
		}
	}
	// Contents are held in a single slice.
	if s.Size > math.MaxInt || h.Size > math.MaxInt {
		return newError(KindNonrepresentable, op, f.filename, nil)
	}

	s.CompressedSize = s.Size
	s.Size = h.Size
	s.AlignPower = h.AlignPower
	if h.Method == compress.Zstd {
		s.status = DecompressZstd
	} else {
		s.status = DecompressZlib
	}
	return nil
}

// InitSectionCompressStatus reads s from a file opened for reading
// and compresses it in memory, as it would be written to an output
// file with f's compression flags.
func (f *File) InitSectionCompressStatus(s *Section) error {
	op := "compress " + s.Name
	if f.direction != ReadDirection || s.Size == 0 || s.CompressedSize != 0 ||
		s.contents != nil || s.status != CompressNone {
		return newError(KindInvalidOperation, op, f.filename, nil)
	}
	if f.sectionSizeInsane(s) {
		return f.tooLarge(s)
	}
	buf := f.arena.Alloc(int(s.Size))
	if err := f.SectionContents(s, buf, 0); err != nil {
		return err
	}
	s.contents = buf
	if _, err := f.compressSectionContents(s); err != nil {
		s.contents = nil
		return err
	}
	return nil
}

// CompressSection compresses data, the uncompressed contents of s,
// for output.
func (f *File) CompressSection(s *Section, data []byte) error {
	op := "compress " + s.Name
	if f.direction != WriteDirection || s.Size == 0 || data == nil ||
		s.contents != nil || s.CompressedSize != 0 || s.status != CompressNone {
		return newError(KindInvalidOperation, op, f.filename, nil)
	}
	if uint64(len(data)) < s.Size {
		return newError(KindBadValue, op, f.filename, nil)
	}
	s.contents = f.arena.Copy(data[:s.Size])
	s.Flags |= SecInMemory
	if _, err := f.compressSectionContents(s); err != nil {
		s.contents = nil
		s.Flags &^= SecInMemory
		return err
	}
	return nil
}

// compressSectionContents compresses s.contents in place according
// to f's flags and returns the uncompressed size. If s is already
// compressed it is converted: a zlib payload moves between the
// legacy and ELF containers unchanged, anything else is decompressed
// and compressed again. If compression would not make s smaller, s
// keeps its uncompressed bytes and CompressNone.
func (f *File) compressSectionContents(s *Section) (uint64, error) {
	op := "compress " + s.Name
	if f.flags&Compress == 0 {
		return 0, newError(KindInvalidOperation, op, f.filename, nil)
	}
	newHdr := f.CompressionHeaderSize(nil)
	info := f.SectionCompressionInfo(s)
	if info.Compressed && info.HeaderSize < 0 {
		return 0, newError(KindBadValue, op, f.filename, compress.ErrBadHeader)
	}
	if newHdr == 0 {
		newHdr = compress.LegacyHeaderSize
	}
	origHdr := info.HeaderSize
	if info.Legacy {
		origHdr = compress.LegacyHeaderSize
	}

	input := s.contents
	size := info.Size
	var payload []byte
	move := false
	if info.Compressed {
		zsize := s.Size - uint64(origHdr)
		move = info.method() == compress.Zlib && f.flags&CompressZstd == 0 &&
			zsize+uint64(newHdr) < size
		if move {
			payload = input[origHdr:s.Size]
			if !info.Legacy {
				s.AlignPower = info.AlignPower
			}
		} else {
			if !inflatable(info.method(), s.Size-uint64(origHdr), size) {
				return 0, f.tooLarge(s)
			}
			out, err := compress.Decompress(info.method(), input[origHdr:s.Size], size)
			if err != nil {
				return 0, newError(KindBadValue, op, f.filename, err)
			}
			input = out
			s.AlignPower = info.AlignPower
			s.status = CompressNone
			s.Size = size
		}
	}
	if !move {
		method := compress.Zlib
		if f.flags&CompressZstd != 0 && newHdr != compress.LegacyHeaderSize {
			method = compress.Zstd
		}
		out, err := compress.Compress(method, input[:size])
		if err != nil {
			return 0, newError(KindBadValue, op, f.filename, err)
		}
		payload = out
	}

	total := uint64(len(payload)) + uint64(newHdr)
	if total >= size {
		s.contents = f.arena.Copy(input[:size])
		s.ELFFlags &^= shfCompressed
		s.status = CompressNone
		s.Size = size
	} else {
		buf := f.arena.Alloc(int(total))
		copy(buf[newHdr:], payload)
		s.Size = size
		f.UpdateCompressionHeader(s, buf)
		s.Size = total
		s.status = CompressDone
		s.contents = buf
	}
	s.Flags |= SecInMemory
	return size, nil
}

// UpdateCompressionHeader writes the compression header for s, whose
// Size is the uncompressed size, at the start of buf. Without
// CompressGABI it writes the legacy container, which cannot record
// alignment, and sets s's alignment to 1. Otherwise it sets
// SHF_COMPRESSED and the header's own alignment.
func (f *File) UpdateCompressionHeader(s *Section, buf []byte) {
	if f.CompressionHeaderSize(nil) != 0 {
		m := compress.Zlib
		if f.flags&CompressZstd != 0 {
			m = compress.Zstd
		}
		s.ELFFlags |= shfCompressed
		compress.PutChdr(buf, f.target.Is64, f.target.ByteOrder,
			compress.Header{Method: m, Size: s.Size, AlignPower: s.AlignPower})
		if f.target.Is64 {
			s.AlignPower = 3
		} else {
			s.AlignPower = 2
		}
		return
	}
	s.ELFFlags &^= shfCompressed
	compress.PutLegacy(buf, s.Size)
	s.AlignPower = 0
}

// zlib cannot do better than about 1032:1. zstd stores runs as RLE
// blocks of four bytes per 128KiB.
const (
	maxCompressionRatio = 2000
	maxZstdRatio        = 1 << 16
)

// inflatable reports whether n bytes compressed with m can expand to
// size bytes. Larger claims come from corrupt headers.
func inflatable(m compress.Method, n, size uint64) bool {
	ratio := uint64(maxCompressionRatio)
	if m == compress.Zstd {
		ratio = maxZstdRatio
	}
	return size/ratio <= n
}

// sectionSizeInsane reports whether s claims more data than the file
// could hold. Such sizes come from corrupt headers and must not be
// allocated.
func (f *File) sectionSizeInsane(s *Section) bool {
	size := s.Size
	if size == 0 || s.Flags&SecInMemory != 0 {
		return false
	}
	fs := f.Size()
	if fs <= 0 {
		return false
	}
	filesize := uint64(fs)
	if s.status == DecompressZlib || s.status == DecompressZstd {
		m := compress.Zlib
		if s.status == DecompressZstd {
			m = compress.Zstd
		}
		if !inflatable(m, filesize, size) {
			return true
		}
		size = s.CompressedSize
	}
	return s.FilePos < 0 || uint64(s.FilePos) > filesize || size > filesize-uint64(s.FilePos)
}

func (f *File) tooLarge(s *Section) error {
	f.ctx.log.Error("section is too large",
		zap.String("file", f.filename), zap.String("section", s.Name), zap.Uint64("size", s.Size))
	return newError(KindFileTooBig, "read "+s.Name, f.filename, nil)
}

// storedContents reads the n stored bytes of s regardless of its
// compression state.
func (f *File) storedContents(s *Section, n uint64) ([]byte, error) {
	p := make([]byte, n)
	switch {
	case s.Flags&SecHasContents == 0:
	case s.Flags&SecInMemory != 0:
		copy(p, s.contents)
	default:
		if err := f.readFullAt(p, s.FilePos); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FullSectionContents returns all of s's contents: its stored bytes
// for CompressNone, the decompressed bytes while decompression is
// pending, and the staged compressed bytes for CompressDone. It
// returns nil for an empty section.
func (f *File) FullSectionContents(s *Section) ([]byte, error) {
	op := "read " + s.Name
	if s.Size == 0 {
		return nil, nil
	}
	if s.status != CompressDone && f.sectionSizeInsane(s) {
		return nil, f.tooLarge(s)
	}
	switch s.status {
	case CompressNone:
		p := make([]byte, s.Size)
		if err := f.SectionContents(s, p, 0); err != nil {
			return nil, err
		}
		return p, nil

	case DecompressZlib, DecompressZstd:
		raw, err := f.storedContents(s, s.CompressedSize)
		if err != nil {
			return nil, err
		}
		hdr := f.CompressionHeaderSize(s)
		if hdr == 0 {
			hdr = compress.LegacyHeaderSize
		}
		if len(raw) < hdr {
			return nil, newError(KindBadValue, op, f.filename, compress.ErrBadHeader)
		}
		m := compress.Zlib
		if s.status == DecompressZstd {
			m = compress.Zstd
		}
		if !inflatable(m, uint64(len(raw)-hdr), s.Size) {
			return nil, f.tooLarge(s)
		}
		out, err := compress.Decompress(m, raw[hdr:], s.Size)
		if err != nil {
			return nil, newError(KindBadValue, op, f.filename, err)
		}
		return out, nil

	case CompressDone:
		if s.contents == nil {
			return nil, newError(KindInvalidOperation, op, f.filename, nil)
		}
		return bytes.Clone(s.contents[:s.Size]), nil
	}
	panic(fmt.Sprintf("bfd: section %s has invalid compression status %v", s.Name, s.status))
}

// LogicalContents returns s's uncompressed contents whatever its
// state: sections staged for output are decompressed, and sections
// stored compressed without a pending decompression are decoded
// directly.
func (f *File) LogicalContents(s *Section) ([]byte, error) {
	op := "read " + s.Name
	switch s.status {
	case CompressDone:
		hdr := compress.LegacyHeaderSize
		var h compress.Header
		if s.ELFFlags&shfCompressed != 0 {
			hdr = compress.ChdrSize(f.target.Is64)
			var err error
			if h, err = compress.ParseChdr(s.contents, f.target.Is64, f.target.ByteOrder); err != nil {
				return nil, newError(KindBadValue, op, f.filename, err)
			}
		} else {
			var ok bool
			if h, ok = compress.ParseLegacy(s.contents); !ok {
				return nil, newError(KindBadValue, op, f.filename, compress.ErrBadHeader)
			}
		}
		if s.Size < uint64(hdr) {
			return nil, newError(KindBadValue, op, f.filename, compress.ErrBadHeader)
		}
		if !inflatable(h.Method, s.Size-uint64(hdr), h.Size) {
			return nil, f.tooLarge(s)
		}
		out, err := compress.Decompress(h.Method, s.contents[hdr:s.Size], h.Size)
		if err != nil {
			return nil, newError(KindBadValue, op, f.filename, err)
		}
		return out, nil

	case CompressNone:
		if s.Flags&SecHasContents == 0 || s.Size == 0 {
			break
		}
		info := f.SectionCompressionInfo(s)
		if !info.Compressed || info.HeaderSize < 0 {
			break
		}
		raw, err := f.FullSectionContents(s)
		if err != nil {
			return nil, err
		}
		hdr := info.HeaderSize
		if info.Legacy {
			hdr = compress.LegacyHeaderSize
		}
		if len(raw) < hdr {
			return nil, newError(KindBadValue, op, f.filename, compress.ErrBadHeader)
		}
		if !inflatable(info.method(), uint64(len(raw)-hdr), info.Size) {
			return nil, f.tooLarge(s)
		}
		out, err := compress.Decompress(info.method(), raw[hdr:], info.Size)
		if err != nil {
			return nil, newError(KindBadValue, op, f.filename, err)
		}
		return out, nil
	}
	return f.FullSectionContents(s)
}

// StagedContents returns the compressed bytes staged for output in a
// CompressDone section, header included.
func (f *File) StagedContents(s *Section) ([]byte, error) {
	if s.status != CompressDone || s.contents == nil {
		return nil, newError(KindInvalidOperation, "read staged "+s.Name, f.filename, nil)
	}
	return bytes.Clone(s.contents[:s.Size]), nil
}

// adjustDebugSection applies f's Compress and Decompress flags to a
// debug section as it is read, renaming between .debug_ and .zdebug_
// to match the container.
func (f *File) adjustDebugSection(s *Section) error {
	if s.Flags&(SecDebugging|SecHasContents) != SecDebugging|SecHasContents ||
		f.flags&(Compress|Decompress) == 0 {
		return nil
	}
	info := f.SectionCompressionInfo(s)
	decompress := info.Compressed && f.flags&Decompress != 0
	if !decompress {
		gabi := f.flags&(CompressGABI|CompressZstd) != 0
		if s.Size == 0 || f.flags&Compress == 0 || info.HeaderSize < 0 || info.Size == 0 ||
			(info.Compressed && (info.HeaderSize > 0) == gabi) {
			return nil
		}
		if err := f.InitSectionCompressStatus(s); err != nil {
			return err
		}
		if s.status == CompressDone && !gabi && strings.HasPrefix(s.Name, ".debug") {
			f.renameSection(s, ".zdebug"+s.Name[len(".debug"):])
		}
		return nil
	}
	if err := f.InitSectionDecompressStatus(s); err != nil {
		return err
	}
	if strings.HasPrefix(s.Name, ".zdebug") {
		f.renameSection(s, ".debug"+s.Name[len(".zdebug"):])
	}
	return nil
}

// ConvertSectionSetup returns the name and size isec should have when
// copied from ibfd to obfd. Debug sections are renamed to match the
// output container, and an ELF compression header changes size when
// the ELF classes differ.
func ConvertSectionSetup(ibfd *File, isec *Section, obfd *File) (name string, size uint64) {
	name = isec.Name
	if isec.Flags&(SecDebugging|SecHasContents) == SecDebugging|SecHasContents {
		if obfd.flags&(Decompress|CompressGABI|CompressZstd) != 0 {
			if strings.HasPrefix(name, ".zdebug_") {
				name = ".debug_" + name[len(".zdebug_"):]
			}
		} else if isec.status == CompressDone && strings.HasPrefix(name, ".debug_") {
			// Only rename when compression actually happened.
			name = ".zdebug_" + name[len(".debug_"):]
		}
	}
	size = isec.Size
	if !elfClassesDiffer(ibfd, obfd) || isec.ELFFlags&shfCompressed == 0 {
		return name, size
	}
	if ibfd.target.Is64 {
		return name, size - compress.Chdr64Size + compress.Chdr32Size
	}
	return name, size - compress.Chdr32Size + compress.Chdr64Size
}

func elfClassesDiffer(a, b *File) bool {
	return a.target != nil && b.target != nil &&
		a.target.Flavour == FlavourELF && b.target.Flavour == FlavourELF &&
		a.target.Is64 != b.target.Is64
}

// ConvertSectionContents rewrites the ELF compression header of
// contents, the stored bytes of isec, for obfd's ELF class and byte
// order. The compression type is carried over as is. Shrinking the
// header reuses contents; growing it returns a new slice.
func ConvertSectionContents(ibfd *File, isec *Section, obfd *File, contents []byte) ([]byte, error) {
	if !elfClassesDiffer(ibfd, obfd) {
		return contents, nil
	}
	ihdr := ibfd.CompressionHeaderSize(isec)
	if ihdr == 0 {
		return contents, nil
	}
	if ihdr > len(contents) {
		return nil, newError(KindBadValue, "convert "+isec.Name, ibfd.filename, compress.ErrBadHeader)
	}

	in, out := ibfd.target.ByteOrder, obfd.target.ByteOrder
	var typ uint32
	var size, align uint64
	var ohdr int
	switch ihdr {
	case compress.Chdr32Size:
		typ = in.Uint32(contents[0:])
		size = uint64(in.Uint32(contents[4:]))
		align = uint64(in.Uint32(contents[8:]))
		ohdr = compress.Chdr64Size
	case compress.Chdr64Size:
		typ = in.Uint32(contents[0:])
		size = in.Uint64(contents[8:])
		align = in.Uint64(contents[16:])
		ohdr = compress.Chdr32Size
	default:
		return nil, newError(KindBadValue, "convert "+isec.Name, ibfd.filename, compress.ErrBadHeader)
	}

	n := len(contents) - ihdr + ohdr
	var dst []byte
	if ohdr < ihdr {
		dst = contents[:n]
		copy(dst[ohdr:], contents[ihdr:])
	} else {
		dst = make([]byte, n)
		copy(dst[ohdr:], contents[ihdr:])
	}
	if ohdr == compress.Chdr32Size {
		out.PutUint32(dst[0:], typ)
		out.PutUint32(dst[4:], uint32(size))
		out.PutUint32(dst[8:], uint32(align))
	} else {
		out.PutUint32(dst[0:], typ)
		out.PutUint32(dst[4:], 0)
		out.PutUint64(dst[8:], size)
		out.PutUint64(dst[16:], align)
	}
	return dst, nil
}
