// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/aclements/go-bfd/internal/fcache"
)

// An IOVec is the set of primitive operations a File performs on its
// underlying stream. Offsets passed to an IOVec are physical: archive
// member origins have already been added.
type IOVec interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Tell() (int64, error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
	Flush() error
	Stat() (Stat, error)
	// Mmap maps length bytes at offset read-only. The returned
	// function unmaps them.
	Mmap(offset int64, length int) ([]byte, func() error, error)
}

// Stat is the subset of file status a File reports.
type Stat struct {
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// ErrNoMmap is returned by I/O vectors that cannot map memory.
var ErrNoMmap = errors.New("mmap not supported")

var errNotWritable = errors.New("stream is read-only")

// cacheIO reads and writes a disk file through the handle cache.
type cacheIO struct {
	c *fcache.Cache
	e *fcache.Entry
}

func (v cacheIO) Read(p []byte) (n int, err error) {
	err = v.c.Do(v.e, fcache.Normal, func(f *os.File) error {
		var rerr error
		n, rerr = io.ReadFull(f, p)
		if rerr == io.ErrUnexpectedEOF {
			rerr = io.EOF
		}
		return rerr
	})
	return n, err
}

func (v cacheIO) Write(p []byte) (n int, err error) {
	err = v.c.Do(v.e, fcache.Normal, func(f *os.File) error {
		var werr error
		n, werr = f.Write(p)
		return werr
	})
	return n, err
}

func (v cacheIO) Tell() (pos int64, err error) {
	err = v.c.Do(v.e, fcache.NoOpen, func(f *os.File) error {
		var serr error
		pos, serr = f.Seek(0, io.SeekCurrent)
		return serr
	})
	if errors.Is(err, fcache.ErrNotOpen) {
		return v.root().Where, nil
	}
	return pos, err
}

func (v cacheIO) Seek(offset int64, whence int) (pos int64, err error) {
	// There is no point restoring the old offset before an absolute
	// seek.
	flag := fcache.NoSeek
	if whence == io.SeekCurrent {
		flag = fcache.Normal
	}
	err = v.c.Do(v.e, flag, func(f *os.File) error {
		var serr error
		pos, serr = f.Seek(offset, whence)
		return serr
	})
	return pos, err
}

// Close closes the file if this entry owns it. Archive members do not.
func (v cacheIO) Close() error {
	return v.c.Close(v.e)
}

func (v cacheIO) Flush() error {
	err := v.c.Do(v.e, fcache.NoOpen, func(*os.File) error { return nil })
	if errors.Is(err, fcache.ErrNotOpen) {
		return nil
	}
	return err
}

func (v cacheIO) Stat() (st Stat, err error) {
	err = v.c.Do(v.e, fcache.NoSeekError, func(f *os.File) error {
		fi, serr := f.Stat()
		if serr != nil {
			return serr
		}
		st = Stat{Size: fi.Size(), Mode: fi.Mode(), ModTime: fi.ModTime()}
		return nil
	})
	return st, err
}

func (v cacheIO) Mmap(offset int64, length int) (data []byte, unmap func() error, err error) {
	err = v.c.Do(v.e, fcache.NoSeekError, func(f *os.File) error {
		var merr error
		data, unmap, merr = mmapFile(f, offset, length)
		return merr
	})
	return data, unmap, err
}

func (v cacheIO) root() *fcache.Entry {
	e := v.e
	for e.Parent != nil {
		e = e.Parent
	}
	return e
}

// memIO is a growable in-memory buffer.
type memIO struct {
	buf []byte
	pos int64
}

func (m *memIO) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memIO) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		if end > int64(cap(m.buf)) {
			nb := make([]byte, end, max(end, 2*int64(cap(m.buf))))
			copy(nb, m.buf)
			m.buf = nb
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memIO) Tell() (int64, error) { return m.pos, nil }

func (m *memIO) Seek(offset int64, whence int) (int64, error) {
	pos := offset
	switch whence {
	case io.SeekCurrent:
		pos += m.pos
	case io.SeekEnd:
		pos += int64(len(m.buf))
	}
	if pos < 0 {
		return m.pos, fs.ErrInvalid
	}
	m.pos = pos
	return pos, nil
}

func (m *memIO) Close() error {
	m.buf = nil
	return nil
}

func (m *memIO) Flush() error { return nil }

func (m *memIO) Stat() (Stat, error) {
	return Stat{Size: int64(len(m.buf))}, nil
}

func (m *memIO) Mmap(offset int64, length int) ([]byte, func() error, error) {
	if offset < 0 || length < 0 || offset+int64(length) > int64(len(m.buf)) {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return m.buf[offset : offset+int64(length)], func() error { return nil }, nil
}

// IOVecFuncs are the callbacks behind a File created by OpenIOVec.
type IOVecFuncs struct {
	// Open is called once with the new File and returns the stream
	// passed to the other callbacks.
	Open func(f *File) (stream any, err error)
	// Pread reads len(p) bytes at off. It returns 0, io.EOF at
	// the end of the stream.
	Pread func(stream any, p []byte, off int64) (int, error)
	// Close, if non-nil, releases the stream.
	Close func(stream any) error
	// Stat, if non-nil, describes the stream. Without it a File
	// reports an all-zero Stat.
	Stat func(stream any) (Stat, error)
}

// opnclsIO adapts IOVecFuncs. It keeps its own position and reads
// with Pread. It does not support writing, SeekEnd or mapping.
type opnclsIO struct {
	stream any
	funcs  IOVecFuncs
	where  int64
}

func (o *opnclsIO) Read(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n, err := o.funcs.Pread(o.stream, p, o.where)
		o.where += int64(n)
		total += n
		p = p[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

func (o *opnclsIO) Write(p []byte) (int, error) {
	return 0, errNotWritable
}

func (o *opnclsIO) Tell() (int64, error) { return o.where, nil }

func (o *opnclsIO) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		o.where = offset
	case io.SeekCurrent:
		o.where += offset
	default:
		return o.where, newError(KindInvalidOperation, "seek", "", errors.New("cannot seek relative to the end of a stream"))
	}
	return o.where, nil
}

func (o *opnclsIO) Close() error {
	if o.funcs.Close == nil {
		return nil
	}
	return o.funcs.Close(o.stream)
}

func (o *opnclsIO) Flush() error { return nil }

func (o *opnclsIO) Stat() (Stat, error) {
	if o.funcs.Stat == nil {
		return Stat{}, nil
	}
	return o.funcs.Stat(o.stream)
}

func (o *opnclsIO) Mmap(offset int64, length int) ([]byte, func() error, error) {
	return nil, nil, ErrNoMmap
}
