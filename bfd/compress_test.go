// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/aclements/go-bfd/internal/compress"
)

// outputFile returns an object file open for writing with the given
// flags.
func outputFile(t *testing.T, c *Context, target string, flags Flags) *File {
	t.Helper()
	f, err := c.OpenWrite(filepath.Join(t.TempDir(), "out.o"), target)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetFormat(FormatObject); err != nil {
		t.Fatal(err)
	}
	f.SetFlags(f.Flags() | flags)
	t.Cleanup(func() { f.CloseAllDone() })
	return f
}

func debugSection(t *testing.T, f *File, name string, size int) *Section {
	t.Helper()
	s, err := f.MakeSectionWithFlags(name, SecHasContents|SecDebugging|SecReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetSectionSize(s, uint64(size)); err != nil {
		t.Fatal(err)
	}
	return s
}

func compressible(n int) []byte {
	return bytes.Repeat([]byte("compressible debug info "), n/24+1)[:n]
}

func TestCompressSection(t *testing.T) {
	tests := []struct {
		name   string
		target string
		flags  Flags
		method compress.Method
		legacy bool
		align  uint
	}{
		{"legacy", "elf64-little", Compress, compress.Zlib, true, 0},
		{"gabi64", "elf64-little", Compress | CompressGABI, compress.Zlib, false, 3},
		{"gabi32", "elf32-big", Compress | CompressGABI, compress.Zlib, false, 2},
		{"zstd", "elf64-big", Compress | CompressZstd, compress.Zstd, false, 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testContext(t)
			f := outputFile(t, c, test.target, test.flags)
			data := compressible(4096)
			s := debugSection(t, f, ".debug_info", len(data))
			if err := f.CompressSection(s, data); err != nil {
				t.Fatal(err)
			}
			if s.CompressStatus() != CompressDone {
				t.Fatalf("status = %v; want %v", s.CompressStatus(), CompressDone)
			}
			if s.Size >= uint64(len(data)) {
				t.Errorf("compressed size %d is not smaller than %d", s.Size, len(data))
			}
			if s.AlignPower != test.align {
				t.Errorf("alignment power = %d; want %d", s.AlignPower, test.align)
			}
			if got := f.CompressionHeaderSize(s); (got == 0) != test.legacy {
				t.Errorf("CompressionHeaderSize = %d", got)
			}

			staged, err := f.StagedContents(s)
			if err != nil {
				t.Fatal(err)
			}
			if uint64(len(staged)) != s.Size {
				t.Errorf("staged %d bytes; section size %d", len(staged), s.Size)
			}
			full, err := f.FullSectionContents(s)
			if err != nil || !bytes.Equal(full, staged) {
				t.Errorf("FullSectionContents differs from StagedContents (err %v)", err)
			}
			var h compress.Header
			if test.legacy {
				var ok bool
				if h, ok = compress.ParseLegacy(staged); !ok {
					t.Fatalf("staged bytes %x do not start with a ZLIB header", staged[:12])
				}
			} else {
				if h, err = compress.ParseChdr(staged, f.Target().Is64, f.Target().ByteOrder); err != nil {
					t.Fatal(err)
				}
			}
			if h.Method != test.method || h.Size != uint64(len(data)) {
				t.Errorf("header = %+v; want method %v size %d", h, test.method, len(data))
			}

			got, err := f.LogicalContents(s)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("LogicalContents does not match the original")
			}
		})
	}
}

func TestCompressNeverExpands(t *testing.T) {
	c := testContext(t)
	f := outputFile(t, c, "elf64-little", Compress|CompressGABI)
	data := make([]byte, 64)
	rand.New(rand.NewSource(1)).Read(data)
	s := debugSection(t, f, ".debug_str", len(data))
	s.AlignPower = 1
	if err := f.CompressSection(s, data); err != nil {
		t.Fatal(err)
	}
	if s.CompressStatus() != CompressNone {
		t.Errorf("status = %v; want %v", s.CompressStatus(), CompressNone)
	}
	if s.Size != uint64(len(data)) || s.ELFFlags&uint64(elf.SHF_COMPRESSED) != 0 || s.AlignPower != 1 {
		t.Errorf("section = size %d flags %#x align %d; want it unchanged", s.Size, s.ELFFlags, s.AlignPower)
	}
	got, err := f.FullSectionContents(s)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("contents changed (err %v)", err)
	}
}

func TestCompressPreconditions(t *testing.T) {
	c := testContext(t)

	f := outputFile(t, c, "elf64-little", 0)
	s := debugSection(t, f, ".debug_info", 100)
	if err := f.CompressSection(s, compressible(100)); KindOf(err) != KindInvalidOperation {
		t.Errorf("CompressSection without Compress flag: got %v", err)
	}

	f = outputFile(t, c, "elf64-little", Compress)
	s = debugSection(t, f, ".debug_info", 100)
	if err := f.CompressSection(s, compressible(50)); KindOf(err) != KindBadValue {
		t.Errorf("CompressSection with short data: got %v", err)
	}
	if err := f.CompressSection(s, compressible(100)); err != nil {
		t.Fatal(err)
	}
	if err := f.CompressSection(s, compressible(100)); KindOf(err) != KindInvalidOperation {
		t.Errorf("second CompressSection: got %v", err)
	}
	if err := f.InitSectionCompressStatus(s); KindOf(err) != KindInvalidOperation {
		t.Errorf("InitSectionCompressStatus on an output file: got %v", err)
	}
	if _, err := f.StagedContents(debugSection(t, f, ".debug_line", 10)); KindOf(err) != KindInvalidOperation {
		t.Errorf("StagedContents of uncompressed section: got %v", err)
	}
}

func TestRecompress(t *testing.T) {
	// A legacy-compressed payload moves into an ELF header without
	// being recompressed.
	c := testContext(t)
	data := compressible(8192)
	payload, err := compress.Compress(compress.Zlib, data)
	if err != nil {
		t.Fatal(err)
	}
	legacy := make([]byte, compress.LegacyHeaderSize+len(payload))
	compress.PutLegacy(legacy, uint64(len(data)))
	copy(legacy[compress.LegacyHeaderSize:], payload)

	f := outputFile(t, c, "elf64-little", Compress|CompressGABI)
	s := debugSection(t, f, ".zdebug_info", len(legacy))
	if err := f.CompressSection(s, legacy); err != nil {
		t.Fatal(err)
	}
	staged, err := f.StagedContents(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(staged[compress.Chdr64Size:], payload) {
		t.Errorf("payload was not moved unchanged")
	}
	got, err := f.LogicalContents(s)
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("LogicalContents after move: err %v, equal %v", err, bytes.Equal(got, data))
	}

	// Asking for zstd forces recompression.
	f = outputFile(t, c, "elf64-little", Compress|CompressZstd)
	s = debugSection(t, f, ".zdebug_info", len(legacy))
	if err := f.CompressSection(s, legacy); err != nil {
		t.Fatal(err)
	}
	staged, err = f.StagedContents(s)
	if err != nil {
		t.Fatal(err)
	}
	h, err := compress.ParseChdr(staged, true, binary.LittleEndian)
	if err != nil || h.Method != compress.Zstd {
		t.Errorf("recompressed header = %+v, %v; want zstd", h, err)
	}
	if got, err := f.LogicalContents(s); err != nil || !bytes.Equal(got, data) {
		t.Errorf("LogicalContents after recompress: err %v", err)
	}
}

func TestConvertSection(t *testing.T) {
	c := testContext(t)
	in := outputFile(t, c, "elf64-little", 0)
	out := outputFile(t, c, "elf32-big", 0)

	payload := []byte("pretend this is zlib")
	contents := make([]byte, compress.Chdr64Size+len(payload))
	compress.PutChdr(contents, true, binary.LittleEndian, compress.Header{Method: compress.Zlib, Size: 1000, AlignPower: 3})
	copy(contents[compress.Chdr64Size:], payload)

	isec := debugSection(t, in, ".debug_info", len(contents))
	isec.ELFFlags |= uint64(elf.SHF_COMPRESSED)
	name, size := ConvertSectionSetup(in, isec, out)
	if name != ".debug_info" || size != uint64(len(contents)-12) {
		t.Errorf("ConvertSectionSetup = %q, %d; want .debug_info, %d", name, size, len(contents)-12)
	}

	got, err := ConvertSectionContents(in, isec, out, bytes.Clone(contents))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(contents)-12 || !bytes.Equal(got[compress.Chdr32Size:], payload) {
		t.Fatalf("converted to %x", got)
	}
	h, err := compress.ParseChdr(got, false, binary.BigEndian)
	if err != nil || h != (compress.Header{Method: compress.Zlib, Size: 1000, AlignPower: 3}) {
		t.Errorf("converted header = %+v, %v", h, err)
	}

	// And back again.
	osec := debugSection(t, out, ".debug_info", len(got))
	osec.ELFFlags |= uint64(elf.SHF_COMPRESSED)
	back, err := ConvertSectionContents(out, osec, in, got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, contents) {
		t.Errorf("round trip = %x; want %x", back, contents)
	}

	// Same class: nothing to do.
	same := outputFile(t, c, "elf64-big", 0)
	if got, err := ConvertSectionContents(in, isec, same, contents); err != nil || &got[0] != &contents[0] {
		t.Errorf("same-class conversion copied or failed: %v", err)
	}
}

func TestConvertSectionSetupNames(t *testing.T) {
	c := testContext(t)
	in := outputFile(t, c, "elf64-little", 0)
	tests := []struct {
		name   string
		flags  Flags
		status CompressStatus
		want   string
	}{
		{".zdebug_info", Decompress, CompressNone, ".debug_info"},
		{".zdebug_info", CompressGABI, CompressNone, ".debug_info"},
		{".debug_info", Compress, CompressDone, ".zdebug_info"},
		{".debug_info", Compress, CompressNone, ".debug_info"},
		{".text", Decompress, CompressNone, ".text"},
	}
	for _, test := range tests {
		out := outputFile(t, c, "elf64-little", test.flags)
		flags := SecHasContents | SecDebugging
		if test.name == ".text" {
			flags = SecHasContents | SecCode
		}
		isec, err := in.MakeSectionAnyway(test.name, flags)
		if err != nil {
			t.Fatal(err)
		}
		isec.status = test.status
		if got, _ := ConvertSectionSetup(in, isec, out); got != test.want {
			t.Errorf("%s with flags %#x, status %v: got %s; want %s", test.name, test.flags, test.status, got, test.want)
		}
	}
}

func TestDecompressImplausibleSize(t *testing.T) {
	// Each section stores a few bytes but its header claims far more
	// than those bytes could expand to.
	const huge = 1 << 50
	tests := []struct {
		name   string
		method compress.Method
		legacy bool
		staged bool
	}{
		{"legacy", compress.Zlib, true, false},
		{"zlib", compress.Zlib, false, false},
		{"zstd", compress.Zstd, false, false},
		{"staged-legacy", compress.Zlib, true, true},
		{"staged-zstd", compress.Zstd, false, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testContext(t)
			f := outputFile(t, c, "elf64-little", 0)
			contents := make([]byte, 32)
			if test.legacy {
				compress.PutLegacy(contents, huge)
			} else {
				compress.PutChdr(contents, true, binary.LittleEndian, compress.Header{Method: test.method, Size: huge})
			}
			copy(contents[len(contents)-4:], "junk")
			s := debugSection(t, f, ".debug_info", len(contents))
			if !test.legacy {
				s.ELFFlags |= uint64(elf.SHF_COMPRESSED)
			}
			if err := f.SetSectionContents(s, contents, 0); err != nil {
				t.Fatal(err)
			}
			if test.staged {
				s.status = CompressDone
			}
			if _, err := f.LogicalContents(s); KindOf(err) != KindFileTooBig {
				t.Errorf("LogicalContents: got %v; want %v", err, KindFileTooBig)
			}
		})
	}
}
