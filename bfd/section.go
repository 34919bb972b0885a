// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import "strings"

// SectionFlags describe a section independently of its file format.
type SectionFlags uint32

const (
	SecAlloc       SectionFlags = 0x1
	SecLoad        SectionFlags = 0x2
	SecReloc       SectionFlags = 0x4
	SecReadOnly    SectionFlags = 0x8
	SecCode        SectionFlags = 0x10
	SecData        SectionFlags = 0x20
	SecROM         SectionFlags = 0x40
	SecConstructor SectionFlags = 0x80
	SecHasContents SectionFlags = 0x100
	SecNeverLoad   SectionFlags = 0x200
	SecThreadLocal SectionFlags = 0x400
	SecIsCommon    SectionFlags = 0x1000
	SecDebugging   SectionFlags = 0x2000
	// SecInMemory means the section's contents are held in memory
	// rather than read from the file.
	SecInMemory SectionFlags = 0x4000
	SecExclude  SectionFlags = 0x8000
	SecLinkOnce SectionFlags = 0x20000
	SecMerge    SectionFlags = 0x800000
	SecStrings  SectionFlags = 0x1000000
)

var secFlagNames = []struct {
	flag SectionFlags
	name string
}{
	{SecAlloc, "ALLOC"},
	{SecLoad, "LOAD"},
	{SecReloc, "RELOC"},
	{SecReadOnly, "READONLY"},
	{SecCode, "CODE"},
	{SecData, "DATA"},
	{SecROM, "ROM"},
	{SecConstructor, "CONSTRUCTOR"},
	{SecHasContents, "CONTENTS"},
	{SecNeverLoad, "NEVER_LOAD"},
	{SecThreadLocal, "THREAD_LOCAL"},
	{SecIsCommon, "IS_COMMON"},
	{SecDebugging, "DEBUGGING"},
	{SecInMemory, "IN_MEMORY"},
	{SecExclude, "EXCLUDE"},
	{SecLinkOnce, "LINK_ONCE"},
	{SecMerge, "MERGE"},
	{SecStrings, "STRINGS"},
}

func (fl SectionFlags) String() string {
	var names []string
	for _, n := range secFlagNames {
		if fl&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ", ")
}

// A Section is a named range of a File.
type Section struct {
	Name  string
	Index int
	Flags SectionFlags

	VMA, LMA uint64
	// Size is the logical size. While decompression is pending it
	// is the uncompressed size and CompressedSize is the size in
	// the file. Once compressed for output it is the staged size.
	Size           uint64
	CompressedSize uint64
	FilePos        int64
	AlignPower     uint

	// ELFFlags and ELFType are the ELF sh_flags and sh_type, when
	// the section came from or is going to an ELF file.
	ELFFlags uint64
	ELFType  uint32

	status   CompressStatus
	contents []byte
	owner    *File
}

// CompressStatus returns the section's compression state.
func (s *Section) CompressStatus() CompressStatus { return s.status }

// Owner returns the File the section belongs to.
func (s *Section) Owner() *File { return s.owner }

func (f *File) addSection(name string, flags SectionFlags) *Section {
	s := &Section{Name: name, Index: len(f.sections), Flags: flags, owner: f}
	f.sections = append(f.sections, s)
	if f.byName == nil {
		f.byName = make(map[string]*Section)
	}
	if _, ok := f.byName[name]; !ok {
		f.byName[name] = s
	}
	return s
}

func (f *File) renameSection(s *Section, name string) {
	if f.byName[s.Name] == s {
		delete(f.byName, s.Name)
		for _, o := range f.sections {
			if o != s && o.Name == s.Name {
				f.byName[o.Name] = o
				break
			}
		}
	}
	s.Name = name
	if _, ok := f.byName[name]; !ok {
		f.byName[name] = s
	}
}

// MakeSection adds an empty section called name. It fails if f
// already has one by that name or output has started.
func (f *File) MakeSection(name string) (*Section, error) {
	return f.MakeSectionWithFlags(name, 0)
}

// MakeSectionWithFlags is like MakeSection but sets the new
// section's flags.
func (f *File) MakeSectionWithFlags(name string, flags SectionFlags) (*Section, error) {
	if f.outputHasBegun {
		return nil, newError(KindInvalidOperation, "make section "+name, f.filename, nil)
	}
	if _, ok := f.byName[name]; ok {
		return nil, newError(KindInvalidOperation, "make section "+name, f.filename, nil)
	}
	return f.addSection(name, flags), nil
}

// MakeSectionAnyway adds a section even if one by the same name
// exists. SectionByName continues to return the first.
func (f *File) MakeSectionAnyway(name string, flags SectionFlags) (*Section, error) {
	if f.outputHasBegun {
		return nil, newError(KindInvalidOperation, "make section "+name, f.filename, nil)
	}
	return f.addSection(name, flags), nil
}

// SectionByName returns the first section called name, or nil.
func (f *File) SectionByName(name string) *Section {
	return f.byName[name]
}

// Sections returns f's sections in order. The slice must not be
// modified.
func (f *File) Sections() []*Section {
	return f.sections
}

// SetSectionSize sets s's size. It fails once output has started.
func (f *File) SetSectionSize(s *Section, size uint64) error {
	if f.outputHasBegun {
		return newError(KindInvalidOperation, "set section size", f.filename, nil)
	}
	s.Size = size
	return nil
}

// SetSectionContents stores data at off within s for output.
func (f *File) SetSectionContents(s *Section, data []byte, off int64) error {
	if s.Flags&SecHasContents == 0 {
		return newError(KindNoContents, "set contents of "+s.Name, f.filename, nil)
	}
	if off < 0 || uint64(off) > s.Size || uint64(len(data)) > s.Size-uint64(off) {
		return newError(KindBadValue, "set contents of "+s.Name, f.filename, nil)
	}
	if !f.writable() {
		return newError(KindInvalidOperation, "set contents of "+s.Name, f.filename, nil)
	}
	if len(data) == 0 {
		return nil
	}
	if uint64(len(s.contents)) < s.Size {
		c := f.arena.Alloc(int(s.Size))
		copy(c, s.contents)
		s.contents = c
	}
	copy(s.contents[off:], data)
	s.Flags |= SecInMemory
	f.outputHasBegun = true
	return nil
}

// SectionContents reads len(p) bytes at off within s, as stored:
// compressed sections are not decompressed. Sections without
// contents read as zeros. It fails for a section whose
// decompression is pending; use LogicalContents for those.
func (f *File) SectionContents(s *Section, p []byte, off int64) error {
	if s.status == DecompressZlib || s.status == DecompressZstd {
		return newError(KindInvalidOperation, "read contents of "+s.Name, f.filename, nil)
	}
	if off < 0 || uint64(off) > s.Size || uint64(len(p)) > s.Size-uint64(off) {
		return newError(KindBadValue, "read contents of "+s.Name, f.filename, nil)
	}
	if len(p) == 0 {
		return nil
	}
	if s.Flags&SecHasContents == 0 {
		clear(p)
		return nil
	}
	if s.Flags&SecInMemory != 0 {
		if s.contents == nil {
			s.Flags &^= SecInMemory
			return newError(KindInvalidOperation, "read contents of "+s.Name, f.filename, nil)
		}
		copy(p, s.contents[off:])
		return nil
	}
	return f.readFullAt(p, s.FilePos+off)
}
