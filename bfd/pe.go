// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/pe"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/aclements/go-bfd/arch"
)

type peBackend struct{}

type peData struct {
	pe        *pe.File
	imageBase uint64
}

const (
	peSymUndefined = 0
	peSymAbsolute  = -1
	peSymDebug     = -2

	peSymClassStatic = 3

	peFileExecutable = 0x0002
	peFileDLL        = 0x2000

	peScnCntCode              = 0x00000020
	peScnCntInitializedData   = 0x00000040
	peScnCntUninitializedData = 0x00000080
	peScnMemDiscardable       = 0x02000000
	peScnMemWrite             = 0x80000000
	peScnAlignMask            = 0x00f00000
)

func (peBackend) objectP(t *Target, f *File) error {
	// Only images with a PE signature are recognized. A bare COFF
	// header has no magic number to check.
	var dos [0x40]byte
	if _, err := io.ReadFull(f, dos[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return newError(KindWrongFormat, "check format", f.filename, nil)
		}
		return err
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		return newError(KindWrongFormat, "check format", f.filename, nil)
	}
	var sig [4]byte
	signOff := int64(t.ByteOrder.Uint32(dos[0x3c:]))
	if err := f.readFullAt(sig[:], signOff); err != nil {
		if KindOf(err) == KindFileTruncated {
			return newError(KindWrongFormat, "check format", f.filename, nil)
		}
		return err
	}
	if !bytes.Equal(sig[:], []byte("PE\x00\x00")) {
		return newError(KindWrongFormat, "check format", f.filename, nil)
	}

	pf, err := pe.NewFile(f)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind != KindFileTruncated {
			return err
		}
		return newError(KindWrongFormat, "check format", f.filename, err)
	}

	var imageBase uint64
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	}

	c := pf.FileHeader.Characteristics
	if c&peFileExecutable != 0 {
		f.flags |= ExecP | DPaged
	}
	if c&peFileDLL != 0 {
		f.flags |= Dynamic
	}
	if len(pf.Symbols) > 0 {
		f.flags |= HasSyms
	}

	info := arch.Unknown
	if a, mach := peArch(pf.FileHeader.Machine); a != arch.ArchUnknown {
		if i, ok := f.ctx.archs.Lookup(a, mach); ok {
			info = i
		}
	}
	f.SetArch(info)

	for _, ps := range pf.Sections {
		sc := ps.Characteristics
		var flags SectionFlags
		switch {
		case sc&peScnCntCode != 0:
			flags |= SecCode | SecAlloc | SecLoad
		case sc&peScnCntInitializedData != 0:
			flags |= SecData | SecAlloc | SecLoad
		case sc&peScnCntUninitializedData != 0:
			flags |= SecAlloc
		}
		if sc&peScnMemWrite == 0 {
			flags |= SecReadOnly
		}
		if ps.Size > 0 && sc&peScnCntUninitializedData == 0 {
			flags |= SecHasContents
		}
		if sc&peScnMemDiscardable != 0 && strings.HasPrefix(ps.Name, ".debug") {
			flags |= SecDebugging
		}
		s := f.addSection(ps.Name, flags)
		s.VMA = imageBase + uint64(ps.VirtualAddress)
		s.LMA = s.VMA
		s.Size = uint64(ps.Size)
		if ps.VirtualSize != 0 && ps.VirtualSize < ps.Size {
			s.Size = uint64(ps.VirtualSize)
		}
		if flags&SecHasContents == 0 {
			s.Size = uint64(ps.VirtualSize)
		}
		s.FilePos = int64(ps.Offset)
		if n := (sc & peScnAlignMask) >> 20; n > 0 {
			s.AlignPower = uint(n - 1)
		}
	}
	f.tdata = &peData{pf, imageBase}
	return nil
}

// peArch maps a COFF machine to an architecture and machine number.
func peArch(m uint16) (arch.Architecture, uint64) {
	switch m {
	case pe.IMAGE_FILE_MACHINE_I386:
		return arch.ArchI386, arch.MachI386
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return arch.ArchI386, arch.MachX86_64
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return arch.ArchAArch64, arch.MachAArch64
	case pe.IMAGE_FILE_MACHINE_ARM, pe.IMAGE_FILE_MACHINE_ARMNT, pe.IMAGE_FILE_MACHINE_THUMB:
		return arch.ArchARM, 0
	case pe.IMAGE_FILE_MACHINE_RISCV32:
		return arch.ArchRISCV, arch.MachRISCV32
	case pe.IMAGE_FILE_MACHINE_RISCV64:
		return arch.ArchRISCV, arch.MachRISCV64
	case pe.IMAGE_FILE_MACHINE_LOONGARCH64:
		return arch.ArchLoongArch, arch.MachLoongArch64
	case pe.IMAGE_FILE_MACHINE_IA64:
		return arch.ArchIA64, arch.MachIA64ELF64
	}
	return arch.ArchUnknown, 0
}

func (peBackend) symbols(f *File) ([]Symbol, error) {
	d, ok := f.tdata.(*peData)
	if !ok {
		return nil, nil
	}

	type psym struct {
		Symbol
		sect int
	}
	var out []psym
	for _, s := range d.pe.Symbols {
		sym := psym{Symbol{Name: s.Name, Value: uint64(s.Value), Kind: SymUnknown}, int(s.SectionNumber)}
		switch s.SectionNumber {
		case peSymUndefined:
			sym.Kind = SymUndef
		case peSymAbsolute:
			sym.Kind = SymAbs
		case peSymDebug:
			// Leave unknown
		default:
			if int(s.SectionNumber)-1 < 0 || int(s.SectionNumber)-1 >= len(d.pe.Sections) {
				// Ignore symbol.
				continue
			}
			sect := d.pe.Sections[int(s.SectionNumber)-1]
			c := sect.Characteristics
			switch {
			case c&peScnCntCode != 0:
				sym.Kind = SymText
			case c&peScnCntInitializedData != 0:
				if c&peScnMemWrite != 0 {
					sym.Kind = SymData
				} else {
					sym.Kind = SymROData
				}
			case c&peScnCntUninitializedData != 0:
				sym.Kind = SymBSS
			}
			sym.Local = s.StorageClass == peSymClassStatic
			sym.Value += d.imageBase + uint64(sect.VirtualAddress)
			if i := int(s.SectionNumber) - 1; i < len(f.sections) {
				sym.Section = f.sections[i]
			}
		}

		out = append(out, sym)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	syms := make([]Symbol, len(out))
	for i := range out {
		sym1 := &out[i]
		syms[i] = sym1.Symbol
		if sym1.sect <= 0 || sym1.sect > len(d.pe.Sections) {
			continue
		}
		if i+1 < len(out) {
			sym2 := out[i+1]
			if sym1.sect == sym2.sect {
				syms[i].Size = sym2.Value - sym1.Value
				continue
			}
		}
		// Symbol is the last in its section.
		sect := d.pe.Sections[sym1.sect-1]
		end := d.imageBase + uint64(sect.VirtualAddress) + uint64(sect.VirtualSize)
		if end > sym1.Value {
			syms[i].Size = end - sym1.Value
		}
	}
	return syms, nil
}

func (peBackend) setFormat(f *File) error {
	return newError(KindInvalidOperation, "set format", f.filename, nil)
}

func (peBackend) writeContents(f *File) error {
	return newError(KindInvalidOperation, "write", f.filename, nil)
}

func (peBackend) closeAndCleanup(f *File) error {
	f.tdata = nil
	return nil
}
