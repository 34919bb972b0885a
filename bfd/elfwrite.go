// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"
	"strings"
)

// elfType returns the sh_type s is written with.
func (s *Section) elfType() elf.SectionType {
	switch {
	case s.ELFType != 0:
		return elf.SectionType(s.ELFType)
	case s.Flags&SecHasContents == 0:
		return elf.SHT_NOBITS
	case strings.HasPrefix(s.Name, ".note"):
		return elf.SHT_NOTE
	}
	return elf.SHT_PROGBITS
}

const elfDerivedFlags = elf.SHF_WRITE | elf.SHF_ALLOC | elf.SHF_EXECINSTR |
	elf.SHF_TLS | elf.SHF_MERGE | elf.SHF_STRINGS

// elfFlags returns the sh_flags s is written with. Flags with a
// section flag counterpart come from s.Flags; the rest are kept from
// s.ELFFlags.
func (s *Section) elfFlags() elf.SectionFlag {
	fl := elf.SectionFlag(s.ELFFlags) &^ elfDerivedFlags
	if s.Flags&SecAlloc != 0 {
		fl |= elf.SHF_ALLOC
	}
	if s.Flags&SecReadOnly == 0 && s.Flags&SecAlloc != 0 {
		fl |= elf.SHF_WRITE
	}
	if s.Flags&SecCode != 0 {
		fl |= elf.SHF_EXECINSTR
	}
	if s.Flags&SecThreadLocal != 0 {
		fl |= elf.SHF_TLS
	}
	if s.Flags&SecMerge != 0 {
		fl |= elf.SHF_MERGE
	}
	if s.Flags&SecStrings != 0 {
		fl |= elf.SHF_STRINGS
	}
	return fl
}

// compressOnWrite reports whether s should be compressed as f is
// written.
func (f *File) compressOnWrite(s *Section) bool {
	return f.flags&Compress != 0 &&
		s.Flags&(SecDebugging|SecHasContents|SecInMemory) == SecDebugging|SecHasContents|SecInMemory &&
		s.status == CompressNone && s.Size > 0 && s.contents != nil &&
		(strings.HasPrefix(s.Name, ".debug_") || strings.HasPrefix(s.Name, ".zdebug_"))
}

func alignUp(off, align uint64) uint64 {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

type elfPiece struct {
	off  uint64
	data []byte
	size uint64
}

// writeContents lays out f's sections after the file header,
// followed by the section name table and the section header table.
// No program headers are written.
func (elfBackend) writeContents(f *File) error {
	t := f.target
	if f.format != FormatObject {
		return newError(KindInvalidOperation, "write", f.filename, nil)
	}

	for _, s := range f.sections {
		if !f.compressOnWrite(s) {
			continue
		}
		if _, err := f.compressSectionContents(s); err != nil {
			return err
		}
		gabi := f.CompressionHeaderSize(nil) != 0
		switch {
		case s.status == CompressDone && !gabi && strings.HasPrefix(s.Name, ".debug_"):
			f.renameSection(s, ".zdebug_"+s.Name[len(".debug_"):])
		case (gabi || s.status == CompressNone) && strings.HasPrefix(s.Name, ".zdebug_"):
			f.renameSection(s, ".debug_"+s.Name[len(".zdebug_"):])
		}
	}
	f.outputHasBegun = true

	ehsize, shentsize := uint64(52), uint64(40)
	if t.Is64 {
		ehsize, shentsize = 64, 64
	}

	shstr := []byte{0}
	nameOff := func(name string) uint32 {
		off := len(shstr)
		shstr = append(shstr, name...)
		shstr = append(shstr, 0)
		return uint32(off)
	}

	hdrs := []elf.Section64{{}}
	var pieces []elfPiece
	off := ehsize
	for _, s := range f.sections {
		typ := s.elfType()
		align := uint64(1) << min(s.AlignPower, 63)
		h := elf.Section64{
			Name:      nameOff(s.Name),
			Type:      uint32(typ),
			Flags:     uint64(s.elfFlags()),
			Addr:      s.VMA,
			Size:      s.Size,
			Addralign: align,
		}
		if typ != elf.SHT_NOBITS {
			off = alignUp(off, align)
			var data []byte
			if s.Flags&SecInMemory != 0 {
				data = s.contents
			}
			pieces = append(pieces, elfPiece{off, data, s.Size})
		}
		h.Off = off
		s.FilePos = int64(off)
		if typ != elf.SHT_NOBITS {
			off += s.Size
		}
		hdrs = append(hdrs, h)
	}
	shstrndx := len(hdrs)
	h := elf.Section64{Name: nameOff(".shstrtab"), Type: uint32(elf.SHT_STRTAB), Addralign: 1}
	h.Off, h.Size = off, uint64(len(shstr))
	pieces = append(pieces, elfPiece{off, shstr, h.Size})
	hdrs = append(hdrs, h)
	off += h.Size
	shoff := alignUp(off, 8)
	if len(hdrs) >= int(elf.SHN_LORESERVE) {
		return newError(KindFileTooBig, "write", f.filename, nil)
	}

	typ := elf.ET_REL
	switch {
	case f.flags&ExecP != 0:
		typ = elf.ET_EXEC
	case f.flags&Dynamic != 0:
		typ = elf.ET_DYN
	}
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	if t.Is64 {
		ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	}
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	if t.ByteOrder == binary.ByteOrder(binary.BigEndian) {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	bo := t.ByteOrder
	if t.Is64 {
		binary.Write(&buf, bo, elf.Header64{
			Ident:     ident,
			Type:      uint16(typ),
			Machine:   uint16(elfMachine(f.arch)),
			Version:   uint32(elf.EV_CURRENT),
			Shoff:     shoff,
			Ehsize:    uint16(ehsize),
			Shentsize: uint16(shentsize),
			Shnum:     uint16(len(hdrs)),
			Shstrndx:  uint16(shstrndx),
		})
	} else {
		binary.Write(&buf, bo, elf.Header32{
			Ident:     ident,
			Type:      uint16(typ),
			Machine:   uint16(elfMachine(f.arch)),
			Version:   uint32(elf.EV_CURRENT),
			Shoff:     uint32(shoff),
			Ehsize:    uint16(ehsize),
			Shentsize: uint16(shentsize),
			Shnum:     uint16(len(hdrs)),
			Shstrndx:  uint16(shstrndx),
		})
	}
	for _, p := range pieces {
		pad(&buf, p.off)
		if uint64(len(p.data)) >= p.size {
			buf.Write(p.data[:p.size])
		} else {
			buf.Write(p.data)
			buf.Write(make([]byte, p.size-uint64(len(p.data))))
		}
	}
	pad(&buf, shoff)
	for _, h := range hdrs {
		if t.Is64 {
			binary.Write(&buf, bo, h)
			continue
		}
		binary.Write(&buf, bo, elf.Section32{
			Name:      h.Name,
			Type:      h.Type,
			Flags:     uint32(h.Flags),
			Addr:      uint32(h.Addr),
			Off:       uint32(h.Off),
			Size:      uint32(h.Size),
			Link:      h.Link,
			Info:      h.Info,
			Addralign: uint32(h.Addralign),
			Entsize:   uint32(h.Entsize),
		})
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := f.Write(buf.Bytes())
	return err
}

// pad extends buf with zeros to length n.
func pad(buf *bytes.Buffer, n uint64) {
	if uint64(buf.Len()) < n {
		buf.Write(make([]byte, n-uint64(buf.Len())))
	}
}
