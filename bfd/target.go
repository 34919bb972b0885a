// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"encoding/binary"
	"io"
)

// A Flavour is the family of a Target.
type Flavour int

const (
	FlavourUnknown Flavour = iota
	FlavourELF
	FlavourPE
	FlavourBinary
)

func (fl Flavour) String() string {
	switch fl {
	case FlavourELF:
		return "elf"
	case FlavourPE:
		return "pe"
	case FlavourBinary:
		return "binary"
	}
	return "unknown"
}

// A Target is an object file format: a flavour plus the parameters
// that distinguish its variants.
type Target struct {
	Name      string
	Flavour   Flavour
	ByteOrder binary.ByteOrder
	// Is64 selects the 64-bit variant of the format.
	Is64 bool

	// probe is set on targets CheckFormat tries when the target
	// was defaulted.
	probe   bool
	backend backend
}

func (t *Target) String() string { return t.Name }

// A backend recognizes and writes one flavour of file.
type backend interface {
	// objectP recognizes f as an object file of its target. It
	// reports KindWrongFormat if f is not one. On success it has
	// set f's sections, architecture and flags.
	objectP(t *Target, f *File) error
	// setFormat prepares f for output in format f.format.
	setFormat(f *File) error
	// writeContents writes f's sections to its stream.
	writeContents(f *File) error
	// closeAndCleanup releases backend data.
	closeAndCleanup(f *File) error
	// symbols reads f's symbol table.
	symbols(f *File) ([]Symbol, error)
}

func builtinTargets() []*Target {
	return []*Target{
		{Name: "elf64-little", Flavour: FlavourELF, ByteOrder: binary.LittleEndian, Is64: true, probe: true, backend: elfBackend{}},
		{Name: "elf64-big", Flavour: FlavourELF, ByteOrder: binary.BigEndian, Is64: true, probe: true, backend: elfBackend{}},
		{Name: "elf32-little", Flavour: FlavourELF, ByteOrder: binary.LittleEndian, probe: true, backend: elfBackend{}},
		{Name: "elf32-big", Flavour: FlavourELF, ByteOrder: binary.BigEndian, probe: true, backend: elfBackend{}},
		{Name: "pe", Flavour: FlavourPE, ByteOrder: binary.LittleEndian, probe: true, backend: peBackend{}},
		{Name: "binary", Flavour: FlavourBinary, ByteOrder: binary.LittleEndian, backend: binaryBackend{}},
	}
}

// FindTarget returns the target called name. An empty name or
// "default" selects the configured default target; if that is also
// "default", the result is the first built-in target and defaulted
// is set, which makes CheckFormat try every target.
func (c *Context) FindTarget(name string) (t *Target, defaulted bool, err error) {
	if name == "" || name == "default" {
		name = c.cfg.DefaultTarget
	}
	if name == "" || name == "default" {
		return c.targets[0], true, nil
	}
	for _, t := range c.targets {
		if t.Name == name {
			return t, false, nil
		}
	}
	return nil, false, newError(KindInvalidTarget, "find target", name, nil)
}

// TargetNames lists the names of the context's targets.
func (c *Context) TargetNames() []string {
	names := make([]string, len(c.targets))
	for i, t := range c.targets {
		names[i] = t.Name
	}
	return names
}

// CheckFormat reports whether f holds a file of the given format,
// recognizing it on first use. If f's target was defaulted, every
// probing target is tried in order and f's target becomes the first
// that matches. f's position is preserved.
func (f *File) CheckFormat(format Format) error {
	if !f.readable() {
		return newError(KindInvalidOperation, "check format", f.filename, nil)
	}
	if f.format != FormatUnknown {
		if f.format == format {
			return nil
		}
		return newError(KindWrongFormat, "check format", f.filename, nil)
	}
	if format != FormatObject {
		return newError(KindWrongFormat, "check format", f.filename, nil)
	}

	candidates := []*Target{f.target}
	if f.defaulted {
		candidates = candidates[:0]
		for _, t := range f.ctx.targets {
			if t.probe {
				candidates = append(candidates, t)
			}
		}
	}

	save := f.where
	defer f.Seek(save, io.SeekStart)
	for _, t := range candidates {
		if t == nil {
			continue
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		mark := f.arena.Mark()
		err := t.backend.objectP(t, f)
		if err == nil {
			f.target = t
			f.format = format
			return nil
		}
		f.arena.Release(mark)
		f.resetContents()
		if KindOf(err) != KindWrongFormat {
			return err
		}
	}
	if len(candidates) > 1 {
		return newError(KindFileNotRecognized, "check format", f.filename, nil)
	}
	return newError(KindWrongFormat, "check format", f.filename, nil)
}

// SetFormat makes f an output file of the given format.
func (f *File) SetFormat(format Format) error {
	if f.readable() || f.format != FormatUnknown {
		return newError(KindInvalidOperation, "set format", f.filename, nil)
	}
	f.format = format
	if f.target == nil {
		return nil
	}
	if err := f.target.backend.setFormat(f); err != nil {
		f.format = FormatUnknown
		return err
	}
	return nil
}

// writeContents writes f's sections through its target. A file with
// no target or format has nothing to write.
func (f *File) writeContents() error {
	if f.target == nil || f.format == FormatUnknown {
		return nil
	}
	return f.target.backend.writeContents(f)
}

func (f *File) closeAndCleanup() error {
	if f.target == nil {
		return nil
	}
	return f.target.backend.closeAndCleanup(f)
}

// resetContents drops everything a backend derived from f.
func (f *File) resetContents() {
	f.sections = nil
	f.byName = nil
	f.tdata = nil
	f.symbols = nil
	f.buildID = nil
	f.SetArch(nil)
	f.flags &^= ExecP | Dynamic | HasSyms | HasReloc | DPaged
}
