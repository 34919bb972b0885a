// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	debuglinkSection    = ".gnu_debuglink"
	debugaltlinkSection = ".gnu_debugaltlink"
)

func (f *File) byteOrder() binary.ByteOrder {
	if f.target == nil || f.target.ByteOrder == nil {
		return binary.LittleEndian
	}
	return f.target.ByteOrder
}

// debuglinkCRCOffset returns the offset of the CRC following a
// NUL-terminated name of length n.
func debuglinkCRCOffset(n int) int {
	return (n + 1 + 3) &^ 3
}

// DebugLinkInfo returns the file name and CRC recorded in f's
// .gnu_debuglink section.
func (f *File) DebugLinkInfo() (name string, crc uint32, err error) {
	const op = "read " + debuglinkSection
	s := f.SectionByName(debuglinkSection)
	if s == nil || s.Flags&SecHasContents == 0 {
		return "", 0, newError(KindNoDebugSection, op, f.filename, nil)
	}
	if s.Size < 8 {
		return "", 0, newError(KindInvalidOperation, op, f.filename, nil)
	}
	contents, err := f.FullSectionContents(s)
	if err != nil {
		return "", 0, err
	}
	nul := bytes.IndexByte(contents, 0)
	if nul < 0 {
		return "", 0, newError(KindBadValue, op, f.filename, nil)
	}
	off := debuglinkCRCOffset(nul)
	if off+4 > len(contents) {
		return "", 0, newError(KindBadValue, op, f.filename, nil)
	}
	return string(contents[:nul]), f.byteOrder().Uint32(contents[off:]), nil
}

// AltDebugLinkInfo returns the file name and build-id recorded in
// f's .gnu_debugaltlink section.
func (f *File) AltDebugLinkInfo() (name string, buildID []byte, err error) {
	const op = "read " + debugaltlinkSection
	s := f.SectionByName(debugaltlinkSection)
	if s == nil || s.Flags&SecHasContents == 0 {
		return "", nil, newError(KindNoDebugSection, op, f.filename, nil)
	}
	if s.Size < 8 {
		return "", nil, newError(KindInvalidOperation, op, f.filename, nil)
	}
	contents, err := f.FullSectionContents(s)
	if err != nil {
		return "", nil, err
	}
	nul := bytes.IndexByte(contents, 0)
	if nul < 0 || nul+1 >= len(contents) {
		return "", nil, newError(KindBadValue, op, f.filename, nil)
	}
	return string(contents[:nul]), contents[nul+1:], nil
}

// canonicalDir returns the directory of the symlink-resolved absolute
// path of name, with a trailing separator.
func (c *Context) canonicalDir(name string) string {
	if dir, ok := c.canonDirs.Get(name); ok {
		return dir
	}
	real := name
	if abs, err := filepath.Abs(name); err == nil {
		real = abs
	}
	if r, err := filepath.EvalSymlinks(real); err == nil {
		real = r
	}
	dir := real[:strings.LastIndexByte(real, '/')+1]
	c.canonDirs.Add(name, dir)
	return dir
}

// FindSeparateDebugFile searches for a companion file of f. It asks
// name for the companion's file name, then tries these candidates in
// order and returns the first for which exists reports true:
//
//  1. the name in f's directory;
//  2. the name in the .debug subdirectory of f's directory;
//  3. the name under each configured extra debug root, joined with
//     f's canonical directory;
//  4. the name under dir (or the configured debug file directory if
//     dir is empty), joined with f's canonical directory.
//
// If includeDirs is false, f's directory is ignored: candidates 1 and
// 2 are relative to the working directory and the roots are used
// without f's canonical directory.
func (f *File) FindSeparateDebugFile(dir string, includeDirs bool,
	name func(*File) (string, error), exists func(path string) bool) (string, error) {
	if dir == "" {
		dir = f.ctx.cfg.DebugFileDirectory
	}
	if dir == "" {
		dir = "."
	}
	base, err := name(f)
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", newError(KindNoDebugSection, "find separate debug file", f.filename, nil)
	}

	var objDir, canonDir string
	if includeDirs {
		objDir = f.filename[:strings.LastIndexByte(f.filename, '/')+1]
		canonDir = f.ctx.canonicalDir(f.filename)
	}

	var candidates []string
	candidates = append(candidates, objDir+base, objDir+".debug/"+base)
	for _, root := range f.ctx.cfg.ExtraDebugRoots {
		if includeDirs {
			candidates = append(candidates, root+canonDir+base)
		} else {
			candidates = append(candidates, root+"/"+base)
		}
	}
	global := dir
	if includeDirs {
		if !strings.HasSuffix(global, "/") && !strings.HasPrefix(canonDir, "/") {
			global += "/"
		}
		global += canonDir
	} else if !strings.HasSuffix(global, "/") {
		global += "/"
	}
	candidates = append(candidates, global+base)

	for _, c := range candidates {
		ok := exists(c)
		f.ctx.log.Debug("probed companion file",
			zap.String("file", f.filename), zap.String("candidate", c), zap.Bool("found", ok))
		if ok {
			return c, nil
		}
	}
	return "", newError(KindNoDebugSection, "find separate debug file", f.filename, os.ErrNotExist)
}

// FollowGNUDebuglink finds the file named by f's .gnu_debuglink
// section whose CRC matches the one recorded there. dir overrides
// the configured debug file directory.
func (f *File) FollowGNUDebuglink(dir string) (string, error) {
	var crc uint32
	name := func(f *File) (string, error) {
		n, c, err := f.DebugLinkInfo()
		crc = c
		return n, err
	}
	exists := func(path string) bool {
		got, err := fileCRC(path)
		return err == nil && got == crc
	}
	return f.FindSeparateDebugFile(dir, true, name, exists)
}

// FollowGNUDebugaltlink finds the file named by f's
// .gnu_debugaltlink section. The candidate only has to exist.
func (f *File) FollowGNUDebugaltlink(dir string) (string, error) {
	name := func(f *File) (string, error) {
		n, _, err := f.AltDebugLinkInfo()
		return n, err
	}
	exists := func(path string) bool {
		fp, err := os.Open(path)
		if err != nil {
			return false
		}
		fp.Close()
		return true
	}
	return f.FindSeparateDebugFile(dir, true, name, exists)
}

// CreateGNUDebuglinkSection adds an empty .gnu_debuglink section to
// f sized for a link to filename. Only the base name of filename is
// stored.
func (f *File) CreateGNUDebuglinkSection(filename string) (*Section, error) {
	const op = "create " + debuglinkSection
	if filename == "" {
		return nil, newError(KindInvalidOperation, op, f.filename, nil)
	}
	base := filepath.Base(filename)
	if f.SectionByName(debuglinkSection) != nil {
		return nil, newError(KindInvalidOperation, op, f.filename, nil)
	}
	s, err := f.MakeSectionWithFlags(debuglinkSection, SecHasContents|SecReadOnly|SecDebugging)
	if err != nil {
		return nil, err
	}
	if err := f.SetSectionSize(s, uint64(debuglinkCRCOffset(len(base))+4)); err != nil {
		return nil, err
	}
	s.AlignPower = 2
	return s, nil
}

// FillInGNUDebuglinkSection stores in s, made by
// CreateGNUDebuglinkSection, the base name of filename and the CRC of
// that file's contents.
func (f *File) FillInGNUDebuglinkSection(s *Section, filename string) error {
	const op = "fill " + debuglinkSection
	if s == nil || filename == "" {
		return newError(KindInvalidOperation, op, f.filename, nil)
	}
	crc, err := fileCRC(filename)
	if err != nil {
		return wrapSys(op, filename, err)
	}
	base := filepath.Base(filename)
	off := debuglinkCRCOffset(len(base))
	contents := make([]byte, off+4)
	copy(contents, base)
	f.byteOrder().PutUint32(contents[off:], crc)
	return f.SetSectionContents(s, contents, 0)
}
