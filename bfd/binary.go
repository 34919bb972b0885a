// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"io"
	"path/filepath"
	"strings"
)

// binaryBackend treats a file as raw bytes: one .data section holding
// the whole file.
type binaryBackend struct{}

func (binaryBackend) objectP(t *Target, f *File) error {
	if f.defaulted {
		return newError(KindWrongFormat, "check format", f.filename, nil)
	}
	st, err := f.Stat()
	if err != nil {
		return err
	}
	s := f.addSection(".data", SecAlloc|SecLoad|SecData|SecHasContents)
	s.Size = uint64(st.Size)
	if f.memberSize > 0 {
		s.Size = uint64(f.memberSize)
	}
	s.FilePos = 0
	f.flags |= HasSyms
	return nil
}

// binarySymbolPrefix returns the prefix of the symbols describing f:
// its name with every character that cannot appear in a C identifier
// replaced by an underscore.
func binarySymbolPrefix(name string) string {
	return "_binary_" + strings.Map(func(r rune) rune {
		if 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' {
			return r
		}
		return '_'
	}, filepath.ToSlash(name))
}

func (binaryBackend) symbols(f *File) ([]Symbol, error) {
	s := f.SectionByName(".data")
	if s == nil {
		return nil, nil
	}
	p := binarySymbolPrefix(f.filename)
	return []Symbol{
		{Name: p + "_start", Value: 0, Kind: SymData, Section: s},
		{Name: p + "_end", Value: s.Size, Kind: SymData, Section: s},
		{Name: p + "_size", Value: s.Size, Kind: SymAbs},
	}, nil
}

func (binaryBackend) setFormat(f *File) error {
	if f.format != FormatObject {
		return newError(KindInvalidOperation, "set format "+f.format.String(), f.filename, nil)
	}
	return nil
}

// writeContents writes each loadable section at its load address
// relative to the lowest one. Gaps read as zeros.
func (binaryBackend) writeContents(f *File) error {
	var low uint64
	found := false
	for _, s := range f.sections {
		if s.Flags&(SecLoad|SecHasContents) != SecLoad|SecHasContents || s.Size == 0 {
			continue
		}
		if !found || s.LMA < low {
			low, found = s.LMA, true
		}
	}
	f.outputHasBegun = true
	for _, s := range f.sections {
		if s.Flags&(SecLoad|SecHasContents) != SecLoad|SecHasContents || s.Size == 0 {
			continue
		}
		data := make([]byte, s.Size)
		if s.Flags&SecInMemory != 0 {
			copy(data, s.contents)
		}
		s.FilePos = int64(s.LMA - low)
		if _, err := f.Seek(s.FilePos, io.SeekStart); err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func (binaryBackend) closeAndCleanup(f *File) error { return nil }
