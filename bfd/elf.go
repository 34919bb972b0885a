// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/elf"
	"errors"
	"io"
	"math/bits"
	"strings"

	"github.com/aclements/go-bfd/arch"
)

type elfBackend struct{}

// elfData is the ELF backend's per-file state for files being read.
type elfData struct {
	ef *elf.File
	// secs maps ELF section indexes to sections. Section headers
	// that do not become sections, such as the symbol table, map
	// to nil.
	secs []*Section
}

// elfHeader is the part of the ELF file header debug/elf does not
// expose.
type elfHeader struct {
	shoff     uint64
	shentsize uint16
	shnum     uint16
	shstrndx  uint16
}

func readELFHeader(t *Target, f *File) (elfHeader, error) {
	var h elfHeader
	size := 52
	if t.Is64 {
		size = 64
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, newError(KindWrongFormat, "check format", f.filename, nil)
		}
		return h, err
	}
	if !bytes.Equal(buf[:4], []byte(elf.ELFMAG)) {
		return h, newError(KindWrongFormat, "check format", f.filename, nil)
	}
	class, data := elf.ELFCLASS32, elf.ELFDATA2LSB
	if t.Is64 {
		class = elf.ELFCLASS64
	}
	if t.ByteOrder.Uint16([]byte{0, 1}) == 1 {
		data = elf.ELFDATA2MSB
	}
	if elf.Class(buf[elf.EI_CLASS]) != class || elf.Data(buf[elf.EI_DATA]) != data {
		return h, newError(KindWrongFormat, "check format", f.filename, nil)
	}
	bo := t.ByteOrder
	if t.Is64 {
		h.shoff = bo.Uint64(buf[40:])
		h.shentsize = bo.Uint16(buf[58:])
		h.shnum = bo.Uint16(buf[60:])
		h.shstrndx = bo.Uint16(buf[62:])
	} else {
		h.shoff = uint64(bo.Uint32(buf[32:]))
		h.shentsize = bo.Uint16(buf[46:])
		h.shnum = bo.Uint16(buf[48:])
		h.shstrndx = bo.Uint16(buf[50:])
	}
	return h, nil
}

// rawAlign returns the sh_addralign stored in section header i.
// debug/elf reports a compressed section's uncompressed alignment.
func rawAlign(t *Target, f *File, h elfHeader, i int) uint64 {
	off, n := 32, 4
	if t.Is64 {
		off, n = 48, 8
	}
	buf := make([]byte, n)
	if f.readFullAt(buf, int64(h.shoff)+int64(i)*int64(h.shentsize)+int64(off)) != nil {
		return 0
	}
	if t.Is64 {
		return t.ByteOrder.Uint64(buf)
	}
	return uint64(t.ByteOrder.Uint32(buf))
}

func (elfBackend) objectP(t *Target, f *File) error {
	h, err := readELFHeader(t, f)
	if err != nil {
		return err
	}
	ef, err := elf.NewFile(f)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind != KindFileTruncated {
			return err
		}
		return newError(KindWrongFormat, "check format", f.filename, err)
	}
	if ef.ByteOrder != t.ByteOrder {
		return newError(KindWrongFormat, "check format", f.filename, nil)
	}

	switch ef.Type {
	case elf.ET_EXEC:
		f.flags |= ExecP
	case elf.ET_DYN:
		f.flags |= Dynamic
	}
	if len(ef.Progs) > 0 && f.flags&(ExecP|Dynamic) != 0 {
		f.flags |= DPaged
	}

	a, mach := elfArch(ef.Machine, t.Is64)
	info := arch.Unknown
	if a != arch.ArchUnknown {
		if i, ok := f.ctx.archs.Lookup(a, mach); ok {
			info = i
		}
	}
	f.SetArch(info)

	d := &elfData{ef: ef, secs: make([]*Section, len(ef.Sections))}
	hidden := make(map[int]bool)
	for i, es := range ef.Sections {
		if es.Type == elf.SHT_SYMTAB {
			hidden[i] = true
			if int(es.Link) < len(ef.Sections) {
				hidden[int(es.Link)] = true
			}
			f.flags |= HasSyms
		}
	}
	if int(h.shstrndx) < len(ef.Sections) {
		hidden[int(h.shstrndx)] = true
	}
	var relocated []int
	for i, es := range ef.Sections {
		if i == 0 || hidden[i] {
			continue
		}
		if (es.Type == elf.SHT_REL || es.Type == elf.SHT_RELA) &&
			es.Flags&elf.SHF_ALLOC == 0 && es.Info != 0 {
			relocated = append(relocated, int(es.Info))
			f.flags |= HasReloc
			continue
		}
		s := f.addSection(es.Name, elfSectionFlags(es.Name, es.Type, es.Flags))
		s.VMA, s.LMA = es.Addr, es.Addr
		s.Size = es.FileSize
		if es.Type == elf.SHT_NOBITS {
			s.Size = es.Size
		}
		s.FilePos = int64(es.Offset)
		align := es.Addralign
		if es.Flags&elf.SHF_COMPRESSED != 0 {
			align = rawAlign(t, f, h, i)
		}
		s.AlignPower = alignPower(align)
		s.ELFFlags = uint64(es.Flags)
		s.ELFType = uint32(es.Type)
		d.secs[i] = s
	}
	for _, i := range relocated {
		if i < len(d.secs) && d.secs[i] != nil {
			d.secs[i].Flags |= SecReloc
		}
	}
	f.tdata = d

	for _, s := range f.sections {
		if err := f.adjustDebugSection(s); err != nil {
			return err
		}
	}
	return nil
}

func alignPower(align uint64) uint {
	if align <= 1 {
		return 0
	}
	return uint(bits.TrailingZeros64(align))
}

// elfDebugPrefixes name non-allocated sections holding debugging
// information.
var elfDebugPrefixes = []string{".debug", ".zdebug", ".gnu.linkonce.wi.", ".gnu.debuglto_.debug_", ".line", ".stab", ".gdb_index"}

func elfSectionFlags(name string, typ elf.SectionType, fl elf.SectionFlag) SectionFlags {
	var flags SectionFlags
	if typ != elf.SHT_NOBITS && typ != elf.SHT_NULL {
		flags |= SecHasContents
	}
	if fl&elf.SHF_ALLOC != 0 {
		flags |= SecAlloc
		if typ != elf.SHT_NOBITS {
			flags |= SecLoad
		}
	}
	if fl&elf.SHF_WRITE == 0 {
		flags |= SecReadOnly
	}
	if fl&elf.SHF_EXECINSTR != 0 {
		flags |= SecCode
	} else if flags&SecLoad != 0 {
		flags |= SecData
	}
	if fl&elf.SHF_TLS != 0 {
		flags |= SecThreadLocal
	}
	if fl&elf.SHF_MERGE != 0 {
		flags |= SecMerge
		if fl&elf.SHF_STRINGS != 0 {
			flags |= SecStrings
		}
	}
	if fl&elf.SHF_ALLOC == 0 {
		for _, p := range elfDebugPrefixes {
			if strings.HasPrefix(name, p) {
				flags |= SecDebugging
				break
			}
		}
	}
	return flags
}

// elfArch maps an ELF machine to an architecture and machine number.
// A machine number of 0 selects the architecture's default.
func elfArch(m elf.Machine, is64 bool) (arch.Architecture, uint64) {
	pick := func(m32, m64 uint64) uint64 {
		if is64 {
			return m64
		}
		return m32
	}
	switch m {
	case elf.EM_386, elf.EM_486:
		return arch.ArchI386, arch.MachI386
	case elf.EM_X86_64:
		return arch.ArchI386, pick(arch.MachX64_32, arch.MachX86_64)
	case elf.EM_AARCH64:
		return arch.ArchAArch64, pick(arch.MachAArch64ILP32, arch.MachAArch64)
	case elf.EM_ARM:
		return arch.ArchARM, arch.MachARMUnknown
	case elf.EM_PPC:
		return arch.ArchPowerPC, arch.MachPPC
	case elf.EM_PPC64:
		return arch.ArchPowerPC, arch.MachPPC64
	case elf.EM_RISCV:
		return arch.ArchRISCV, pick(arch.MachRISCV32, arch.MachRISCV64)
	case elf.EM_SPARC, elf.EM_SPARC32PLUS:
		return arch.ArchSPARC, arch.MachSPARC
	case elf.EM_SPARCV9:
		return arch.ArchSPARC, arch.MachSPARCV9
	case elf.EM_S390:
		return arch.ArchS390, pick(arch.MachS390_31, arch.MachS390_64)
	case elf.EM_IA_64:
		return arch.ArchIA64, pick(arch.MachIA64ELF32, arch.MachIA64ELF64)
	case elf.EM_LOONGARCH:
		return arch.ArchLoongArch, pick(arch.MachLoongArch32, arch.MachLoongArch64)
	case elf.EM_ALPHA, elf.EM_ALPHA_STD:
		return arch.ArchAlpha, 0
	case elf.EM_MIPS, elf.EM_MIPS_RS3_LE:
		return arch.ArchMIPS, 0
	case elf.EM_68K:
		return arch.ArchM68K, 0
	case elf.EM_SH:
		return arch.ArchSH, 0
	case elf.EM_AVR:
		return arch.ArchAVR, 0
	case elf.EM_H8_300, elf.EM_H8_300H, elf.EM_H8S:
		return arch.ArchH8300, 0
	case elf.EM_VAX:
		return arch.ArchVAX, 0
	}
	return arch.ArchUnknown, 0
}

// elfMachine is the inverse of elfArch.
func elfMachine(info *arch.Info) elf.Machine {
	if info == nil {
		return elf.EM_NONE
	}
	switch info.Arch {
	case arch.ArchI386:
		if info.Mach&(arch.MachX86_64|arch.MachX64_32) != 0 {
			return elf.EM_X86_64
		}
		return elf.EM_386
	case arch.ArchAArch64:
		return elf.EM_AARCH64
	case arch.ArchARM:
		return elf.EM_ARM
	case arch.ArchPowerPC:
		if info.BitsPerWord == 64 {
			return elf.EM_PPC64
		}
		return elf.EM_PPC
	case arch.ArchRISCV:
		return elf.EM_RISCV
	case arch.ArchSPARC:
		if info.BitsPerWord == 64 {
			return elf.EM_SPARCV9
		}
		return elf.EM_SPARC
	case arch.ArchS390:
		return elf.EM_S390
	case arch.ArchIA64:
		return elf.EM_IA_64
	case arch.ArchLoongArch:
		return elf.EM_LOONGARCH
	case arch.ArchAlpha:
		return elf.EM_ALPHA
	case arch.ArchMIPS:
		return elf.EM_MIPS
	case arch.ArchM68K:
		return elf.EM_68K
	case arch.ArchSH:
		return elf.EM_SH
	case arch.ArchAVR:
		return elf.EM_AVR
	case arch.ArchH8300:
		return elf.EM_H8_300
	case arch.ArchVAX:
		return elf.EM_VAX
	}
	return elf.EM_NONE
}

func (elfBackend) symbols(f *File) ([]Symbol, error) {
	d, ok := f.tdata.(*elfData)
	if !ok {
		return nil, nil
	}
	syms, err := d.ef.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindBadValue, "read symbols", f.filename, err)
	}

	var out []Symbol
	for _, s := range syms {
		kind := SymUnknown
		var sect *Section
		switch s.Section {
		case elf.SHN_UNDEF:
			kind = SymUndef
		case elf.SHN_COMMON:
			kind = SymBSS
		case elf.SHN_ABS:
			kind = SymAbs
		default:
			if s.Section < 0 || s.Section >= elf.SectionIndex(len(d.ef.Sections)) {
				// Ignore symbol.
				continue
			}
			es := d.ef.Sections[s.Section]
			switch es.Flags & (elf.SHF_WRITE | elf.SHF_ALLOC | elf.SHF_EXECINSTR) {
			case elf.SHF_ALLOC | elf.SHF_EXECINSTR:
				kind = SymText
			case elf.SHF_ALLOC:
				kind = SymROData
			case elf.SHF_ALLOC | elf.SHF_WRITE:
				kind = SymData
				if es.Type == elf.SHT_NOBITS {
					kind = SymBSS
				}
			}
			sect = d.secs[s.Section]
		}
		local := elf.ST_BIND(s.Info) == elf.STB_LOCAL

		out = append(out, Symbol{s.Name, s.Value, s.Size, kind, local, sect})
	}
	return out, nil
}

func (elfBackend) setFormat(f *File) error {
	if f.format != FormatObject {
		return newError(KindInvalidOperation, "set format "+f.format.String(), f.filename, nil)
	}
	return nil
}

func (elfBackend) closeAndCleanup(f *File) error {
	f.tdata = nil
	return nil
}
