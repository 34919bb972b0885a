// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/aclements/go-bfd/arch"
)

// minimalPE returns a PE image with no optional header and one .text
// section holding text.
func minimalPE(machine uint16, text []byte) []byte {
	var buf bytes.Buffer
	dos := make([]byte, 0x40)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], 0x40)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	binary.Write(&buf, binary.LittleEndian, pe.FileHeader{
		Machine:          machine,
		NumberOfSections: 1,
		Characteristics:  peFileExecutable,
	})
	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(text)),
		VirtualAddress:   0x1000,
		SizeOfRawData:    uint32(len(text)),
		PointerToRawData: 0x80,
		Characteristics:  peScnCntCode | 0x20000000 | 0x40000000,
	}
	copy(sh.Name[:], ".text")
	binary.Write(&buf, binary.LittleEndian, sh)
	buf.Write(text)
	return buf.Bytes()
}

func TestPERead(t *testing.T) {
	c := testContext(t)
	text := []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}
	name := writeFile(t, filepath.Join(t.TempDir(), "a.exe"), minimalPE(pe.IMAGE_FILE_MACHINE_AMD64, text))

	f := openObject(t, c, name, 0)
	if f.Target().Flavour != FlavourPE {
		t.Fatalf("recognized as %v", f.Target())
	}
	x8664, _ := arch.Lookup(arch.ArchI386, arch.MachX86_64)
	if f.Arch() != x8664 {
		t.Errorf("arch = %v; want %v", f.Arch(), x8664)
	}
	if f.Flags()&ExecP == 0 {
		t.Errorf("ExecP not set")
	}
	s := f.SectionByName(".text")
	if s == nil {
		t.Fatalf("no .text in %v", f.Sections())
	}
	want := SecCode | SecAlloc | SecLoad | SecReadOnly | SecHasContents
	if s.Flags != want || s.VMA != 0x1000 || s.Size != uint64(len(text)) || s.FilePos != 0x80 {
		t.Errorf(".text = %v vma %#x size %d pos %#x", s.Flags, s.VMA, s.Size, s.FilePos)
	}
	got, err := f.FullSectionContents(s)
	if err != nil || !bytes.Equal(got, text) {
		t.Errorf(".text contents = %x, %v", got, err)
	}
	if syms, err := f.Symbols(); err != nil || len(syms) != 0 {
		t.Errorf("Symbols() = %v, %v", syms, err)
	}
}

func TestPEWrite(t *testing.T) {
	c := testContext(t)
	f, err := c.OpenWrite(filepath.Join(t.TempDir(), "a.exe"), "pe")
	if err != nil {
		t.Fatal(err)
	}
	defer f.CloseAllDone()
	if err := f.SetFormat(FormatObject); KindOf(err) != KindInvalidOperation {
		t.Errorf("SetFormat on pe: got %v", err)
	}
}
