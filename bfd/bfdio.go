// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"errors"
	"io"
	"io/fs"
)

// Read reads up to len(p) bytes at f's current position. An archive
// member never reads past the end of its range. It returns io.EOF
// along with a short count at the end of the file.
func (f *File) Read(p []byte) (int, error) {
	if f.iovec == nil {
		return 0, io.EOF
	}
	if f.myArchive != nil {
		if f.where < 0 || f.where >= f.memberSize {
			if f.where == f.memberSize {
				return 0, io.EOF
			}
			return 0, newError(KindInvalidOperation, "read", f.filename, nil)
		}
		if rest := f.memberSize - f.where; int64(len(p)) > rest {
			p = p[:rest]
		}
	}
	if f.sharesStream() {
		// The stream's position may belong to another file.
		if _, err := f.iovec.Seek(f.origin+f.where, io.SeekStart); err != nil {
			return 0, wrapSys("read", f.filename, err)
		}
	}
	n, err := f.iovec.Read(p)
	f.where += int64(n)
	if err == io.EOF {
		return n, io.EOF
	}
	return n, wrapSys("read", f.filename, err)
}

// Write writes p at f's current position.
func (f *File) Write(p []byte) (int, error) {
	if f.iovec == nil {
		return 0, newError(KindInvalidOperation, "write", f.filename, nil)
	}
	if f.sharesStream() {
		if _, err := f.iovec.Seek(f.origin+f.where, io.SeekStart); err != nil {
			return 0, wrapSys("write", f.filename, err)
		}
	}
	n, err := f.iovec.Write(p)
	f.where += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, wrapSys("write", f.filename, err)
}

// Tell returns f's current position relative to its origin.
func (f *File) Tell() int64 {
	return f.where
}

// Seek sets f's position. Offsets are relative to f's origin within
// its archive, if any. Seeking to the current position is free.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.iovec == nil {
		return f.where, newError(KindInvalidOperation, "seek", f.filename, nil)
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.where + offset
	case io.SeekEnd:
		if f.myArchive != nil {
			target = f.memberSize + offset
			break
		}
		pos, err := f.iovec.Seek(offset, io.SeekEnd)
		if err != nil {
			return f.where, f.seekError(err)
		}
		f.where = pos
		return pos, nil
	default:
		return f.where, newError(KindBadValue, "seek", f.filename, nil)
	}
	if target == f.where && !f.sharesStream() {
		return target, nil
	}
	if target < 0 {
		return f.where, newError(KindFileTruncated, "seek", f.filename, fs.ErrInvalid)
	}
	if _, err := f.iovec.Seek(f.origin+target, io.SeekStart); err != nil {
		return f.where, f.seekError(err)
	}
	f.where = target
	return target, nil
}

// The OS reports an absurd offset as EINVAL, which here means the
// file is shorter than its headers claim.
func (f *File) seekError(err error) error {
	if errors.Is(err, fs.ErrInvalid) {
		return newError(KindFileTruncated, "seek", f.filename, err)
	}
	return wrapSys("seek", f.filename, err)
}

// sharesStream reports whether f's stream is also used by its
// archive or its members.
func (f *File) sharesStream() bool {
	return f.myArchive != nil || f.members > 0
}

// ReadAt implements io.ReaderAt. It moves f's position.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(f, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// readFullAt is ReadAt where running out of data means the file is
// truncated.
func (f *File) readFullAt(p []byte, off int64) error {
	n, err := f.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == io.EOF {
		return newError(KindFileTruncated, "read", f.filename, nil)
	}
	return err
}

// Flush flushes buffered writes to the stream.
func (f *File) Flush() error {
	if f.iovec == nil {
		return nil
	}
	return wrapSys("flush", f.filename, f.iovec.Flush())
}

// Stat returns the status of f's stream.
func (f *File) Stat() (Stat, error) {
	if f.iovec == nil {
		return Stat{}, newError(KindInvalidOperation, "stat", f.filename, nil)
	}
	st, err := f.iovec.Stat()
	return st, wrapSys("stat", f.filename, err)
}

// Size returns the size of f's contents, or 0 if it cannot be
// determined. An archive member's size is its range.
func (f *File) Size() int64 {
	if f.myArchive != nil {
		return f.memberSize
	}
	st, err := f.Stat()
	if err != nil {
		return 0
	}
	return st.Size
}

// Mmap maps length bytes at offset, relative to f's origin.
func (f *File) Mmap(offset int64, length int) ([]byte, func() error, error) {
	if f.iovec == nil {
		return nil, nil, newError(KindInvalidOperation, "mmap", f.filename, nil)
	}
	data, unmap, err := f.iovec.Mmap(f.origin+offset, length)
	return data, unmap, wrapSys("mmap", f.filename, err)
}
