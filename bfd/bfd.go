// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bfd opens, creates and closes object files and reads and
// writes them through interchangeable I/O vectors.
//
// A File is the central handle. It is backed by one of three I/O
// vectors: a disk file multiplexed through the Context's handle
// cache, a growable in-memory buffer, or caller-supplied callbacks.
// Format backends (ELF, PE and raw binary) recognize and write files
// in terms of sections, and the compression layer translates debug
// sections between their compressed on-disk form and logical bytes.
//
// A File is not safe for concurrent use. Distinct Files may be used
// from different goroutines; the shared handle cache is locked.
package bfd

import (
	"strings"

	"github.com/aclements/go-bfd/arch"
	"github.com/aclements/go-bfd/internal/fcache"
)

// A Direction is the access a File was opened for.
type Direction int

const (
	NoDirection Direction = iota
	ReadDirection
	WriteDirection
	BothDirection
)

func (d Direction) String() string {
	switch d {
	case ReadDirection:
		return "read"
	case WriteDirection:
		return "write"
	case BothDirection:
		return "both"
	}
	return "none"
}

// A Format is the kind of contents a File holds.
type Format int

const (
	FormatUnknown Format = iota
	FormatObject
	FormatArchive
	FormatCore
)

func (f Format) String() string {
	switch f {
	case FormatObject:
		return "object"
	case FormatArchive:
		return "archive"
	case FormatCore:
		return "core"
	}
	return "unknown"
}

// Flags are the per-file flags.
type Flags uint32

const (
	HasReloc      Flags = 0x1
	ExecP         Flags = 0x2
	HasLineno     Flags = 0x4
	HasDebug      Flags = 0x8
	HasSyms       Flags = 0x10
	HasLocals     Flags = 0x20
	Dynamic       Flags = 0x40
	DPaged        Flags = 0x100
	InMemory      Flags = 0x800
	LinkerCreated Flags = 0x1000
	Deterministic Flags = 0x2000
	// Compress asks for debug sections to be compressed on output.
	Compress Flags = 0x4000
	// Decompress asks for compressed debug sections to be presented
	// decompressed on input.
	Decompress Flags = 0x8000
	Plugin     Flags = 0x10000
	// CompressGABI selects the ELF compression header rather than
	// the legacy "ZLIB" container and .zdebug names.
	CompressGABI Flags = 0x20000
	// CompressZstd selects zstd; it implies CompressGABI.
	CompressZstd Flags = 0x400000
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{HasReloc, "HAS_RELOC"},
	{ExecP, "EXEC_P"},
	{HasLineno, "HAS_LINENO"},
	{HasDebug, "HAS_DEBUG"},
	{HasSyms, "HAS_SYMS"},
	{HasLocals, "HAS_LOCALS"},
	{Dynamic, "DYNAMIC"},
	{DPaged, "D_PAGED"},
	{InMemory, "IN_MEMORY"},
	{LinkerCreated, "LINKER_CREATED"},
	{Deterministic, "DETERMINISTIC_OUTPUT"},
	{Compress, "COMPRESS"},
	{Decompress, "DECOMPRESS"},
	{Plugin, "PLUGIN"},
	{CompressGABI, "COMPRESS_GABI"},
	{CompressZstd, "COMPRESS_ZSTD"},
}

func (fl Flags) String() string {
	var names []string
	for _, n := range flagNames {
		if fl&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ", ")
}

// A File is an open object file.
type File struct {
	ctx       *Context
	id        uint32
	filename  string
	target    *Target
	defaulted bool // target came from the default, so CheckFormat probes
	format    Format
	direction Direction
	flags     Flags

	iovec IOVec
	entry fcache.Entry // handle cache bookkeeping for disk files
	where int64        // logical offset, relative to origin

	// Archive members read a byte range of their archive's stream.
	myArchive  *File
	origin     int64
	memberSize int64
	members    int // members created from this file

	arch *arch.Info

	sections []*Section
	byName   map[string]*Section

	arena   Arena
	tdata   any // backend private data
	symbols []Symbol
	buildID []byte
	closed  bool
	// outputHasBegun is set once section contents have been
	// written; section layout is frozen after that.
	outputHasBegun bool
	ltoOutput      bool
	noExport       bool
}

// Context returns the context f belongs to.
func (f *File) Context() *Context { return f.ctx }

// ID returns f's identifier, unique within its context.
func (f *File) ID() uint32 { return f.id }

// Name returns f's file name.
func (f *File) Name() string { return f.filename }

// Target returns f's format target, or nil if it has none.
func (f *File) Target() *Target { return f.target }

// TargetDefaulted reports whether f's target was chosen by default
// rather than named by the caller.
func (f *File) TargetDefaulted() bool { return f.defaulted }

// Format returns what f has been recognized or set as.
func (f *File) Format() Format { return f.format }

// Direction returns the access f was opened for.
func (f *File) Direction() Direction { return f.direction }

// Flags returns f's flags.
func (f *File) Flags() Flags { return f.flags }

// SetFlags replaces f's flags.
func (f *File) SetFlags(flags Flags) { f.flags = flags }

// Arch returns f's architecture. It is arch.Unknown until a backend
// or SetArch sets it.
func (f *File) Arch() *arch.Info { return f.arch }

// SetArch sets f's architecture.
func (f *File) SetArch(info *arch.Info) {
	if info == nil {
		info = arch.Unknown
	}
	f.arch = info
}

// Archive returns the archive f is a member of, or nil.
func (f *File) Archive() *File { return f.myArchive }

// Origin returns the offset of f's contents within the outermost
// stream it shares.
func (f *File) Origin() int64 { return f.origin }

// Arena returns f's allocation arena.
func (f *File) Arena() *Arena { return &f.arena }

// IOVec returns f's I/O vector.
func (f *File) IOVec() IOVec { return f.iovec }

// Cacheable reports whether the handle cache may close and reopen
// f's file.
func (f *File) Cacheable() bool { return f.entry.Cacheable }

// ClosedByCache reports whether f's file is currently closed because
// the handle cache needed the slot.
func (f *File) ClosedByCache() bool { return f.entry.ClosedByCache }

func (f *File) readable() bool {
	return f.direction == ReadDirection || f.direction == BothDirection
}

func (f *File) writable() bool {
	return f.direction == WriteDirection || f.direction == BothDirection
}

// ArchCompatible decides the architecture of a combination of a and
// b. See arch.Compatible.
func ArchCompatible(a, b *File, acceptUnknown bool) (*arch.Info, error) {
	return arch.Compatible(a.archOperand(), b.archOperand(), acceptUnknown)
}

func (f *File) archOperand() arch.Operand {
	return arch.Operand{
		Info:   f.arch,
		Binary: f.target != nil && f.target.Flavour == FlavourBinary,
		Plugin: f.flags&Plugin != 0,
	}
}
