// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"bytes"
	"encoding/hex"
)

const (
	buildIDSection = ".note.gnu.build-id"
	ntGNUBuildID   = 3
)

// BuildID returns the build-id recorded in f's .note.gnu.build-id
// note. The result is cached on f; the caller must not modify it.
func (f *File) BuildID() ([]byte, error) {
	const op = "read " + buildIDSection
	if f.buildID != nil {
		return f.buildID, nil
	}
	s := f.SectionByName(buildIDSection)
	if s == nil || s.Flags&SecHasContents == 0 {
		return nil, newError(KindNoDebugSection, op, f.filename, nil)
	}
	// A note header plus the name "GNU".
	if s.Size < 16 {
		return nil, newError(KindInvalidOperation, op, f.filename, nil)
	}
	contents, err := f.FullSectionContents(s)
	if err != nil {
		return nil, err
	}
	bo := f.byteOrder()
	namesz := bo.Uint32(contents[0:])
	descsz := bo.Uint32(contents[4:])
	typ := bo.Uint32(contents[8:])
	if typ != ntGNUBuildID || namesz != 4 ||
		!bytes.Equal(contents[12:16], []byte("GNU\x00")) ||
		descsz == 0 || descsz > 0x7ffffffe || uint64(len(contents)) < 16+uint64(descsz) {
		return nil, newError(KindBadValue, op, f.filename, nil)
	}
	f.buildID = bytes.Clone(contents[16 : 16+descsz])
	return f.buildID, nil
}

// BuildIDPath returns the path, relative to a debug root, of the
// debug file for build-id id: .build-id/xx/yyyy.debug, where xx is
// the first byte in hex and yyyy the rest.
func BuildIDPath(id []byte) string {
	if len(id) == 0 {
		return ""
	}
	return ".build-id/" + hex.EncodeToString(id[:1]) + "/" + hex.EncodeToString(id[1:]) + ".debug"
}

// FollowBuildIDDebuglink finds the debug file for f's build-id under
// the debug roots. A candidate must be an object file with the same
// build-id.
func (f *File) FollowBuildIDDebuglink(dir string) (string, error) {
	var id []byte
	name := func(f *File) (string, error) {
		var err error
		id, err = f.BuildID()
		if err != nil {
			return "", err
		}
		return BuildIDPath(id), nil
	}
	exists := func(path string) bool {
		cf, err := f.ctx.OpenRead(path, "")
		if err != nil {
			return false
		}
		defer cf.Close()
		if cf.CheckFormat(FormatObject) != nil {
			return false
		}
		got, err := cf.BuildID()
		return err == nil && bytes.Equal(got, id)
	}
	return f.FindSeparateDebugFile(dir, false, name, exists)
}
