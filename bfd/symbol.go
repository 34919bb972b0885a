// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import "sort"

// A Symbol is an entry in a File's symbol table.
type Symbol struct {
	Name        string
	Value, Size uint64
	Kind        SymKind
	Local       bool
	// Section is the section the symbol is defined in, or nil for
	// undefined, absolute and common symbols.
	Section *Section
}

// A SymKind classifies a symbol the way nm does.
type SymKind uint8

const (
	SymUnknown SymKind = '?'
	SymText    SymKind = 'T'
	SymData    SymKind = 'D'
	SymROData  SymKind = 'R'
	SymBSS     SymKind = 'B'
	SymUndef   SymKind = 'U'
	SymAbs     SymKind = 'A'
)

func (k SymKind) String() string { return string(rune(k)) }

// Symbols returns f's symbols. The result is cached until f is
// closed or made readable again.
func (f *File) Symbols() ([]Symbol, error) {
	if f.symbols != nil {
		return f.symbols, nil
	}
	if f.format != FormatObject || f.target == nil {
		return nil, newError(KindInvalidOperation, "read symbols", f.filename, nil)
	}
	syms, err := f.target.backend.symbols(f)
	if err != nil {
		return nil, err
	}
	if syms == nil {
		syms = []Symbol{}
	}
	f.symbols = syms
	return syms, nil
}

// SymbolData returns the bytes of s, zero-filled past the end of its
// section's stored data.
func (f *File) SymbolData(s Symbol) ([]byte, error) {
	sect := s.Section
	if sect == nil {
		return nil, nil
	}
	if s.Value < sect.VMA {
		return nil, newError(KindBadValue, "read symbol "+s.Name, f.filename, nil)
	}
	out := make([]byte, s.Size)
	pos := s.Value - sect.VMA
	if pos >= sect.Size || sect.Flags&SecHasContents == 0 {
		return out, nil
	}
	flen := min(s.Size, sect.Size-pos)
	if sect.status != CompressNone {
		data, err := f.LogicalContents(sect)
		if err != nil {
			return nil, err
		}
		copy(out, data[pos:pos+flen])
		return out, nil
	}
	if err := f.SectionContents(sect, out[:flen], int64(pos)); err != nil {
		return nil, err
	}
	return out, nil
}

// A SymbolTable looks up symbols by name and address.
type SymbolTable struct {
	addr []Symbol
	name map[string]int
}

// NewSymbolTable returns a table of syms. It sorts syms by address.
func NewSymbolTable(syms []Symbol) *SymbolTable {
	// Put syms in address order for fast address lookup.
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Value < syms[j].Value
	})

	name := make(map[string]int)
	for i, s := range syms {
		if s.Kind == SymUndef {
			continue
		}
		name[s.Name] = i
	}

	return &SymbolTable{syms, name}
}

// Syms returns all symbols in address order. The caller must not
// modify the returned slice.
func (t *SymbolTable) Syms() []Symbol {
	return t.addr
}

// Name returns the defined symbol with the given name.
func (t *SymbolTable) Name(name string) (Symbol, bool) {
	if i, ok := t.name[name]; ok {
		return t.addr[i], true
	}
	return Symbol{}, false
}

// Addr returns the symbol containing addr.
func (t *SymbolTable) Addr(addr uint64) (Symbol, bool) {
	i := sort.Search(len(t.addr), func(i int) bool {
		return addr < t.addr[i].Value
	})
	if i > 0 {
		s := t.addr[i-1]
		if s.Value != 0 && s.Value <= addr && addr < s.Value+s.Size {
			return s, true
		}
	}
	return Symbol{}, false
}

// SymName returns the name and base of the symbol containing addr. It
// returns "", 0 if no symbol contains addr.
//
// This is useful for x/arch disassembly functions.
func (t *SymbolTable) SymName(addr uint64) (name string, base uint64) {
	if sym, ok := t.Addr(addr); ok {
		return sym.Name, sym.Value
	}
	return "", 0
}
