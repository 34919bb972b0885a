// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aclements/go-bfd/arch"
	"github.com/aclements/go-bfd/internal/compress"
)

type testSection struct {
	name  string
	flags SectionFlags
	vma   uint64
	data  []byte
	size  uint64 // for sections without contents
}

// writeELF writes sections to a new ELF file and returns its name.
func writeELF(t *testing.T, c *Context, target string, info *arch.Info, flags Flags, sections []testSection) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "test.o")
	f, err := c.OpenWrite(name, target)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetFormat(FormatObject); err != nil {
		t.Fatal(err)
	}
	f.SetArch(info)
	f.SetFlags(f.Flags() | flags)
	for _, ts := range sections {
		s, err := f.MakeSectionWithFlags(ts.name, ts.flags)
		if err != nil {
			t.Fatal(err)
		}
		s.VMA, s.LMA = ts.vma, ts.vma
		s.AlignPower = 2
		size := ts.size
		if ts.data != nil {
			size = uint64(len(ts.data))
		}
		if err := f.SetSectionSize(s, size); err != nil {
			t.Fatal(err)
		}
	}
	for _, ts := range sections {
		if ts.data == nil {
			continue
		}
		if err := f.SetSectionContents(f.SectionByName(ts.name), ts.data, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func openObject(t *testing.T, c *Context, name string, flags Flags) *File {
	t.Helper()
	f, err := c.OpenRead(name, "")
	if err != nil {
		t.Fatal(err)
	}
	f.SetFlags(f.Flags() | flags)
	if err := f.CheckFormat(FormatObject); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

var testSections = []testSection{
	{name: ".text", flags: SecAlloc | SecLoad | SecCode | SecHasContents | SecReadOnly, vma: 0x1000, data: []byte{0x90, 0x90, 0xc3, 0xcc}},
	{name: ".data", flags: SecAlloc | SecLoad | SecData | SecHasContents, vma: 0x2000, data: []byte("hello, world\x00")},
	{name: ".bss", flags: SecAlloc, vma: 0x3000, size: 64},
	{name: ".comment", flags: SecHasContents | SecReadOnly, data: []byte("go-bfd\x00")},
}

func TestELFRoundTrip(t *testing.T) {
	targets := []struct {
		target string
		arch   arch.Architecture
		mach   uint64
		flags  Flags
	}{
		{"elf64-little", arch.ArchI386, arch.MachX86_64, 0},
		{"elf32-little", arch.ArchI386, arch.MachI386, ExecP},
		{"elf64-big", arch.ArchPowerPC, arch.MachPPC64, Dynamic},
		{"elf32-big", arch.ArchSPARC, arch.MachSPARC, 0},
	}
	for _, tt := range targets {
		t.Run(tt.target, func(t *testing.T) {
			c := testContext(t)
			info, ok := arch.Lookup(tt.arch, tt.mach)
			if !ok {
				t.Fatalf("no arch %v:%d", tt.arch, tt.mach)
			}
			name := writeELF(t, c, tt.target, info, tt.flags, testSections)

			ef, err := elf.Open(name)
			if err != nil {
				t.Fatalf("debug/elf cannot read the output: %v", err)
			}
			if ef.Machine != elfMachine(info) {
				t.Errorf("e_machine = %v; want %v", ef.Machine, elfMachine(info))
			}
			ef.Close()

			f := openObject(t, c, name, 0)
			if f.Target().Name != tt.target {
				t.Errorf("recognized as %s; want %s", f.Target().Name, tt.target)
			}
			if !f.TargetDefaulted() {
				t.Errorf("target not marked defaulted")
			}
			if f.Arch() != info {
				t.Errorf("arch = %v; want %v", f.Arch(), info)
			}
			if got := f.Flags() & (ExecP | Dynamic); got != tt.flags {
				t.Errorf("flags = %#x; want %#x", got, tt.flags)
			}
			if len(f.Sections()) != len(testSections) {
				t.Fatalf("read %d sections; want %d", len(f.Sections()), len(testSections))
			}
			for i, ts := range testSections {
				s := f.Sections()[i]
				if s.Name != ts.name || s.Flags != ts.flags || s.VMA != ts.vma || s.AlignPower != 2 {
					t.Errorf("section %d = %s %v vma %#x align %d; want %s %v vma %#x align 2",
						i, s.Name, s.Flags, s.VMA, s.AlignPower, ts.name, ts.flags, ts.vma)
				}
				if ts.data == nil {
					if s.Size != ts.size {
						t.Errorf("%s size = %d; want %d", s.Name, s.Size, ts.size)
					}
					continue
				}
				got, err := f.FullSectionContents(s)
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(got, ts.data) {
					t.Errorf("%s contents = %q; want %q", s.Name, got, ts.data)
				}
			}
			if syms, err := f.Symbols(); err != nil || len(syms) != 0 {
				t.Errorf("Symbols() = %v, %v; want none", syms, err)
			}
		})
	}
}

func TestELFCompressedDebug(t *testing.T) {
	data := compressible(10000)
	sections := []testSection{
		{name: ".text", flags: SecAlloc | SecLoad | SecCode | SecHasContents | SecReadOnly, data: []byte{0xc3}},
		{name: ".debug_info", flags: SecHasContents | SecDebugging | SecReadOnly, data: data},
	}
	tests := []struct {
		name      string
		flags     Flags
		onDisk    string
		chdr      bool
		inMemName string
	}{
		{"gabi", Compress | CompressGABI, ".debug_info", true, ".debug_info"},
		{"legacy", Compress, ".zdebug_info", false, ".debug_info"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testContext(t)
			i386, _ := arch.Lookup(arch.ArchI386, arch.MachX86_64)
			name := writeELF(t, c, "elf64-little", i386, test.flags, sections)

			// Without Decompress the section reads as stored.
			f := openObject(t, c, name, 0)
			s := f.SectionByName(test.onDisk)
			if s == nil {
				t.Fatalf("no section %s in %v", test.onDisk, f.Sections())
			}
			if s.CompressStatus() != CompressNone || s.Size >= uint64(len(data)) {
				t.Errorf("stored section: status %v size %d", s.CompressStatus(), s.Size)
			}
			if got := s.ELFFlags&uint64(elf.SHF_COMPRESSED) != 0; got != test.chdr {
				t.Errorf("SHF_COMPRESSED = %v; want %v", got, test.chdr)
			}
			info := f.SectionCompressionInfo(s)
			if !info.Compressed || info.Legacy == test.chdr || info.Size != uint64(len(data)) {
				t.Errorf("SectionCompressionInfo = %+v", info)
			}
			got, err := f.LogicalContents(s)
			if err != nil || !bytes.Equal(got, data) {
				t.Errorf("LogicalContents: err %v, equal %v", err, bytes.Equal(got, data))
			}

			// With Decompress it reads as the original.
			f = openObject(t, c, name, Decompress)
			s = f.SectionByName(test.inMemName)
			if s == nil {
				t.Fatalf("no section %s after decompression", test.inMemName)
			}
			if s.CompressStatus() != DecompressZlib || s.Size != uint64(len(data)) {
				t.Errorf("decompressing section: status %v size %d", s.CompressStatus(), s.Size)
			}
			got, err = f.FullSectionContents(s)
			if err != nil || !bytes.Equal(got, data) {
				t.Errorf("FullSectionContents: err %v, equal %v", err, bytes.Equal(got, data))
			}
			if err := f.SectionContents(s, make([]byte, 4), 0); KindOf(err) != KindInvalidOperation {
				t.Errorf("raw read of a decompressing section: got %v", err)
			}
		})
	}
}

func TestDecompressStatusLargeSize(t *testing.T) {
	// Sizes past 4GiB are representable on 64-bit hosts. The file
	// is far too small to hold them, so reading still fails.
	tests := []struct {
		size uint64
		want Kind
	}{
		{1 << 24, KindNone},
		{5 << 30, KindNone},
		{1 << 40, KindNone},
	}
	for _, test := range tests {
		want := test.want
		if strconv.IntSize == 32 && test.size > 1<<31-1 {
			want = KindNonrepresentable
		}
		c := testContext(t)
		contents := make([]byte, 64)
		compress.PutLegacy(contents, test.size)
		x86, _ := arch.Lookup(arch.ArchI386, arch.MachX86_64)
		name := writeELF(t, c, "elf64-little", x86, 0, []testSection{
			{name: ".debug_info", flags: SecHasContents | SecDebugging | SecReadOnly, data: contents},
		})
		f := openObject(t, c, name, 0)
		s := f.SectionByName(".debug_info")
		if s == nil {
			t.Fatalf("no .debug_info in %v", f.Sections())
		}
		if err := f.InitSectionDecompressStatus(s); KindOf(err) != want {
			t.Errorf("size %#x: InitSectionDecompressStatus = %v; want %v", test.size, err, want)
		}
		if want != KindNone {
			continue
		}
		if s.Size != test.size || s.CompressedSize != uint64(len(contents)) {
			t.Errorf("size %#x: section size %d compressed %d", test.size, s.Size, s.CompressedSize)
		}
		if _, err := f.FullSectionContents(s); KindOf(err) != KindFileTooBig {
			t.Errorf("size %#x: FullSectionContents = %v; want %v", test.size, err, KindFileTooBig)
		}
	}
}

func TestCheckFormat(t *testing.T) {
	c := testContext(t)
	dir := t.TempDir()

	junk := writeFile(t, filepath.Join(dir, "junk"), []byte("this is not an object file at all, not even close. "))
	f, err := c.OpenRead(junk, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.CheckFormat(FormatObject); KindOf(err) != KindFileNotRecognized {
		t.Errorf("CheckFormat of junk: got %v; want %v", err, KindFileNotRecognized)
	}
	if f.Format() != FormatUnknown || len(f.Sections()) != 0 {
		t.Errorf("failed CheckFormat left format %v and %d sections", f.Format(), len(f.Sections()))
	}
	f.Close()

	f, err = c.OpenRead(junk, "elf32-little")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.CheckFormat(FormatObject); KindOf(err) != KindWrongFormat {
		t.Errorf("CheckFormat of junk as elf32-little: got %v; want %v", err, KindWrongFormat)
	}
	f.Close()

	// An explicit binary target accepts anything.
	f, err = c.OpenRead(junk, "binary")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.Seek(5, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.CheckFormat(FormatObject); err != nil {
		t.Fatal(err)
	}
	if f.Tell() != 5 {
		t.Errorf("CheckFormat moved the position to %d", f.Tell())
	}
	st, _ := os.Stat(junk)
	if s := f.SectionByName(".data"); s == nil || s.Size != uint64(st.Size()) {
		t.Errorf("binary .data section = %+v", s)
	}
	if err := f.CheckFormat(FormatArchive); KindOf(err) != KindWrongFormat {
		t.Errorf("CheckFormat for a different format: got %v", err)
	}
	syms, err := f.Symbols()
	if err != nil || len(syms) != 3 || syms[2].Value != uint64(st.Size()) {
		t.Errorf("binary symbols = %v, %v", syms, err)
	}
}

func TestELFArchMapping(t *testing.T) {
	for _, info := range arch.Default.Infos() {
		m := elfMachine(info)
		if m == elf.EM_NONE {
			continue
		}
		a, _ := elfArch(m, info.BitsPerWord == 64)
		if a != info.Arch {
			t.Errorf("%v: e_machine %v maps back to %v", info, m, a)
		}
	}
}
