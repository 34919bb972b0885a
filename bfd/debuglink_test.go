// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCalcGNUDebuglinkCRC32(t *testing.T) {
	if got := CalcGNUDebuglinkCRC32(0, []byte("123456789")); got != 0xcbf43926 {
		t.Errorf("CRC of check string = %#x; want 0xcbf43926", got)
	}
	crc := CalcGNUDebuglinkCRC32(0, []byte("1234"))
	crc = CalcGNUDebuglinkCRC32(crc, []byte("56789"))
	if crc != 0xcbf43926 {
		t.Errorf("incremental CRC = %#x; want 0xcbf43926", crc)
	}
}

// writeLinked writes an object file at name whose .gnu_debuglink
// section refers to debugFile, which must already exist.
func writeLinked(t *testing.T, c *Context, name, debugFile string) {
	t.Helper()
	f, err := c.OpenWrite(name, "elf64-little")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetFormat(FormatObject); err != nil {
		t.Fatal(err)
	}
	s, err := f.CreateGNUDebuglinkSection(debugFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.FillInGNUDebuglinkSection(s, debugFile); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDebugLinkInfo(t *testing.T) {
	c := testContext(t)
	dir := t.TempDir()
	debug := writeFile(t, filepath.Join(dir, "prog.debug"), []byte("debug info"))
	prog := filepath.Join(dir, "prog")
	writeLinked(t, c, prog, debug)

	f := openObject(t, c, prog, 0)
	name, crc, err := f.DebugLinkInfo()
	if err != nil {
		t.Fatal(err)
	}
	if name != "prog.debug" {
		t.Errorf("name = %q; want prog.debug", name)
	}
	if want := CalcGNUDebuglinkCRC32(0, []byte("debug info")); crc != want {
		t.Errorf("crc = %#x; want %#x", crc, want)
	}
	s := f.SectionByName(debuglinkSection)
	if s.Size != 16 || s.AlignPower != 2 {
		t.Errorf("section size %d align %d; want 16 and 2", s.Size, s.AlignPower)
	}
	if _, _, err := f.AltDebugLinkInfo(); KindOf(err) != KindNoDebugSection {
		t.Errorf("AltDebugLinkInfo without section: got %v", err)
	}
}

func TestDebugSectionWithoutContents(t *testing.T) {
	tests := []struct {
		section string
		read    func(*File) error
	}{
		{debuglinkSection, func(f *File) error { _, _, err := f.DebugLinkInfo(); return err }},
		{debugaltlinkSection, func(f *File) error { _, _, err := f.AltDebugLinkInfo(); return err }},
		{buildIDSection, func(f *File) error { _, err := f.BuildID(); return err }},
	}
	for _, test := range tests {
		c := testContext(t)
		f := outputFile(t, c, "elf64-little", 0)
		s, err := f.MakeSectionWithFlags(test.section, SecReadOnly)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSectionSize(s, 32); err != nil {
			t.Fatal(err)
		}
		if err := test.read(f); KindOf(err) != KindNoDebugSection {
			t.Errorf("%s without contents: got %v; want %v", test.section, err, KindNoDebugSection)
		}
	}
}

func TestCreateGNUDebuglinkSection(t *testing.T) {
	c := testContext(t)
	f := outputFile(t, c, "elf64-little", 0)
	tests := []struct {
		file string
		size uint64
	}{
		{"/usr/lib/debug/abc", 8},
		{"abcd", 12},
	}
	for _, test := range tests {
		s, err := f.CreateGNUDebuglinkSection(test.file)
		if err != nil {
			t.Fatal(err)
		}
		if s.Size != test.size {
			t.Errorf("size for %q = %d; want %d", test.file, s.Size, test.size)
		}
		if _, err := f.CreateGNUDebuglinkSection(test.file); KindOf(err) != KindInvalidOperation {
			t.Errorf("second create: got %v", err)
		}
		f.sections, f.byName = nil, nil
	}
	if _, err := f.CreateGNUDebuglinkSection(""); KindOf(err) != KindInvalidOperation {
		t.Errorf("create with empty name: got %v", err)
	}
}

func TestFollowGNUDebuglink(t *testing.T) {
	contents := []byte("separate debug info")
	tests := []struct {
		name string
		// path returns where the debug file goes, given the object's
		// directory and canonical directory.
		path func(c *Context, objDir, canonDir string) string
	}{
		{"objdir", func(c *Context, objDir, _ string) string {
			return filepath.Join(objDir, "prog.debug")
		}},
		{"dotdebug", func(c *Context, objDir, _ string) string {
			return filepath.Join(objDir, ".debug", "prog.debug")
		}},
		{"extra", func(c *Context, _, canonDir string) string {
			return c.cfg.ExtraDebugRoots[0] + canonDir + "prog.debug"
		}},
		{"global", func(c *Context, _, canonDir string) string {
			return c.cfg.DebugFileDirectory + canonDir + "prog.debug"
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testContext(t)
			objDir := t.TempDir()
			prog := filepath.Join(objDir, "prog")
			canonDir := c.canonicalDir(prog)
			want := test.path(c, objDir, canonDir)
			if err := os.MkdirAll(filepath.Dir(want), 0777); err != nil {
				t.Fatal(err)
			}
			writeFile(t, want, contents)
			writeLinked(t, c, prog, want)

			f := openObject(t, c, prog, 0)
			got, err := f.FollowGNUDebuglink("")
			if err != nil {
				t.Fatal(err)
			}
			if filepath.Clean(got) != filepath.Clean(want) {
				t.Errorf("found %s; want %s", got, want)
			}

			// A debug file with the wrong CRC is not a match.
			corrupt := append([]byte(nil), contents...)
			corrupt[0] ^= 1
			writeFile(t, want, corrupt)
			if got, err := f.FollowGNUDebuglink(""); KindOf(err) != KindNoDebugSection || !errors.Is(err, os.ErrNotExist) {
				t.Errorf("after corruption found %q, %v", got, err)
			}
		})
	}
}

func TestFollowGNUDebugaltlink(t *testing.T) {
	c := testContext(t)
	objDir := t.TempDir()
	prog := filepath.Join(objDir, "prog")
	alt := writeFile(t, filepath.Join(objDir, "prog.alt"), []byte("dwz"))

	f, err := c.OpenWrite(prog, "elf64-little")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetFormat(FormatObject); err != nil {
		t.Fatal(err)
	}
	data := append([]byte("prog.alt\x00"), 0xde, 0xad, 0xbe, 0xef)
	s, err := f.MakeSectionWithFlags(debugaltlinkSection, SecHasContents|SecReadOnly|SecDebugging)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetSectionSize(s, uint64(len(data))); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSectionContents(s, data, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r := openObject(t, c, prog, 0)
	name, id, err := r.AltDebugLinkInfo()
	if err != nil || name != "prog.alt" || string(id) != "\xde\xad\xbe\xef" {
		t.Errorf("AltDebugLinkInfo() = %q, %x, %v", name, id, err)
	}
	got, err := r.FollowGNUDebugaltlink("")
	if err != nil || got != alt {
		t.Errorf("FollowGNUDebugaltlink() = %q, %v; want %q", got, err, alt)
	}
}
