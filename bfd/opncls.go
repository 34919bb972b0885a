// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"io"
	"os"
	"strings"

	"github.com/aclements/go-bfd/arch"
	"github.com/aclements/go-bfd/internal/fcache"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

func (c *Context) newFile() *File {
	return &File{ctx: c, id: c.newID(), arch: arch.Unknown}
}

// delete releases f's memory. It is the end of every File's life,
// successful or not.
func (f *File) delete() {
	if f.closed {
		return
	}
	f.closed = true
	f.resetContents()
	f.arena.Free()
	f.iovec = nil
	f.ctx.release()
}

// NewBare returns a File with no name, target, stream or direction.
// It must be given a stream, for example by MakeWritable, before it
// can do I/O.
func (c *Context) NewBare() *File {
	return c.newFile()
}

// NewContained returns a read-only File for the size bytes at origin
// within f, sharing f's stream. The member never closes the stream.
// Files held in memory cannot contain members.
func (f *File) NewContained(name string, origin, size int64) (*File, error) {
	if f.flags&InMemory != 0 {
		return nil, newError(KindMalformedArchive, "open member", f.filename, nil)
	}
	m := f.ctx.newFile()
	m.filename = name
	m.target, m.defaulted = f.target, f.defaulted
	m.direction = ReadDirection
	m.myArchive = f
	m.origin = f.origin + origin
	m.memberSize = size
	m.ltoOutput, m.noExport = f.ltoOutput, f.noExport
	switch v := f.iovec.(type) {
	case cacheIO:
		m.entry = fcache.Entry{Name: name, Mode: fcache.ModeRead, Parent: v.e}
		m.iovec = cacheIO{c: v.c, e: &m.entry}
	default:
		m.iovec = f.iovec
	}
	f.members++
	return m, nil
}

// fopenFlags translates an fopen mode string. 'b' is ignored.
func fopenFlags(mode string) (flag int, dir Direction, ok bool) {
	if mode == "" {
		return 0, NoDirection, false
	}
	plus := strings.Contains(mode[1:], "+")
	switch mode[0] {
	case 'r':
		if plus {
			return os.O_RDWR, BothDirection, true
		}
		return os.O_RDONLY, ReadDirection, true
	case 'w':
		if plus {
			return os.O_RDWR | os.O_CREATE | os.O_TRUNC, BothDirection, true
		}
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, WriteDirection, true
	case 'a':
		if plus {
			return os.O_RDWR | os.O_CREATE | os.O_APPEND, BothDirection, true
		}
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, WriteDirection, true
	}
	return 0, NoDirection, false
}

func cacheMode(d Direction) fcache.Mode {
	switch d {
	case ReadDirection:
		return fcache.ModeRead
	case WriteDirection:
		return fcache.ModeWrite
	}
	return fcache.ModeBoth
}

func closeFD(fd int) {
	if fd >= 0 {
		os.NewFile(uintptr(fd), "").Close()
	}
}

// Fopen opens name with an fopen-style mode ("r", "rb", "r+", "w",
// "a+" and so on). If fd is not negative, it is used instead of
// opening name, and the file is not cacheable because it may have
// been opened with flags a reopen could not reproduce. On any
// failure fd is closed.
func (c *Context) Fopen(name, target, mode string, fd int) (*File, error) {
	f := c.newFile()
	t, defaulted, err := c.FindTarget(target)
	if err != nil {
		closeFD(fd)
		f.delete()
		return nil, err
	}
	f.target, f.defaulted = t, defaulted

	flag, dir, ok := fopenFlags(mode)
	if !ok {
		closeFD(fd)
		f.delete()
		return nil, newError(KindInvalidOperation, "open", name, nil)
	}
	var osf *os.File
	if fd >= 0 {
		osf = os.NewFile(uintptr(fd), name)
	} else {
		osf, err = os.OpenFile(name, flag, 0666)
		if err != nil {
			f.delete()
			return nil, newError(KindSystemCall, "open", name, err)
		}
	}

	f.filename = name
	f.direction = dir
	f.entry = fcache.Entry{Name: name, Mode: cacheMode(dir), OpenedOnce: true}
	c.cache.Register(&f.entry, osf)
	f.iovec = cacheIO{c: c.cache, e: &f.entry}
	f.entry.Cacheable = fd < 0
	c.log.Debug("opened", zap.String("file", name), zap.Stringer("direction", dir), zap.Uint32("id", f.id))
	return f, nil
}

// OpenRead opens name for reading.
func (c *Context) OpenRead(name, target string) (*File, error) {
	return c.Fopen(name, target, "rb", -1)
}

// FdOpenRead opens the file descriptor fd, which names the file name.
// The direction follows fd's access mode.
func (c *Context) FdOpenRead(name, target string, fd int) (*File, error) {
	mode, err := fdMode(fd)
	if err != nil {
		closeFD(fd)
		return nil, newError(KindSystemCall, "open", name, err)
	}
	return c.Fopen(name, target, mode, fd)
}

// FdOpenWrite is like FdOpenRead but fails unless fd is writable.
func (c *Context) FdOpenWrite(name, target string, fd int) (*File, error) {
	f, err := c.FdOpenRead(name, target, fd)
	if err != nil {
		return nil, err
	}
	if !f.writable() {
		c.cache.Close(&f.entry)
		f.delete()
		return nil, newError(KindInvalidOperation, "open", name, nil)
	}
	f.direction = WriteDirection
	return f, nil
}

// OpenWrite creates name for writing, replacing any existing file.
func (c *Context) OpenWrite(name, target string) (*File, error) {
	f := c.newFile()
	t, defaulted, err := c.FindTarget(target)
	if err != nil {
		f.delete()
		return nil, err
	}
	f.target, f.defaulted = t, defaulted
	f.filename = name
	f.direction = WriteDirection
	f.entry = fcache.Entry{Name: name, Mode: fcache.ModeWrite}
	if _, err := c.cache.OpenFile(&f.entry); err != nil {
		f.delete()
		return nil, newError(KindSystemCall, "open", name, err)
	}
	f.iovec = cacheIO{c: c.cache, e: &f.entry}
	return f, nil
}

// OpenStream reads from an already open file. The stream is owned
// by the returned File but is not cacheable.
func (c *Context) OpenStream(name, target string, stream *os.File) (*File, error) {
	f := c.newFile()
	t, defaulted, err := c.FindTarget(target)
	if err != nil {
		f.delete()
		return nil, err
	}
	f.target, f.defaulted = t, defaulted
	f.filename = name
	f.direction = ReadDirection
	f.entry = fcache.Entry{Name: name, Mode: fcache.ModeRead}
	c.cache.Register(&f.entry, stream)
	f.iovec = cacheIO{c: c.cache, e: &f.entry}
	return f, nil
}

// OpenIOVec returns a read-only File whose I/O is done by funcs.
// funcs.Open is called with the new File and its result is the
// stream passed to the other callbacks.
func (c *Context) OpenIOVec(name, target string, funcs IOVecFuncs) (*File, error) {
	if funcs.Open == nil || funcs.Pread == nil {
		return nil, newError(KindInvalidOperation, "open", name, nil)
	}
	f := c.newFile()
	t, defaulted, err := c.FindTarget(target)
	if err != nil {
		f.delete()
		return nil, err
	}
	f.target, f.defaulted = t, defaulted
	f.filename = name
	f.direction = ReadDirection
	stream, err := funcs.Open(f)
	if err != nil {
		f.delete()
		return nil, wrapSys("open", name, err)
	}
	f.iovec = &opnclsIO{stream: stream, funcs: funcs}
	return f, nil
}

// Create returns a File with no stream and no direction, using
// templ's target if templ is non-nil, and sets its format to object.
// Call MakeWritable before writing to it.
func (c *Context) Create(name string, templ *File) *File {
	f := c.newFile()
	f.filename = name
	if templ != nil {
		f.target = templ.target
	}
	f.SetFormat(FormatObject)
	return f
}

// MakeWritable gives a File with no direction an in-memory stream
// and makes it writable.
func (f *File) MakeWritable() error {
	if f.direction != NoDirection {
		return newError(KindInvalidOperation, "make writable", f.filename, nil)
	}
	f.iovec = &memIO{}
	f.flags |= InMemory
	f.origin = 0
	f.where = 0
	f.direction = WriteDirection
	return nil
}

// MakeReadable finishes writing an in-memory File and reopens its
// contents for reading, as if they had been written to disk and
// opened again. The File keeps its identity and name; everything
// derived from the written contents is discarded and the format is
// probed afresh.
func (f *File) MakeReadable() error {
	if f.direction != WriteDirection || f.flags&InMemory == 0 {
		return newError(KindInvalidOperation, "make readable", f.filename, nil)
	}
	if err := f.writeContents(); err != nil {
		return err
	}
	if err := f.closeAndCleanup(); err != nil {
		return err
	}

	f.resetContents()
	f.arena.Free()
	f.where = 0
	f.format = FormatUnknown
	f.myArchive = nil
	f.origin = 0
	f.entry = fcache.Entry{}
	f.defaulted = true
	f.direction = ReadDirection
	if _, err := f.iovec.Seek(0, io.SeekStart); err != nil {
		return wrapSys("make readable", f.filename, err)
	}
	// An image no target recognizes stays FormatUnknown but is
	// still readable as bytes.
	f.CheckFormat(FormatObject)
	return nil
}

// Close writes f if it is open for writing and then releases it. All
// failures are reported, and f is released even if writing failed.
// An archive cannot be closed while members opened from it are live.
func (f *File) Close() error {
	if err := f.checkClose(); err != nil {
		return err
	}
	var result *multierror.Error
	if f.writable() {
		if err := f.writeContents(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := f.Flush(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := f.CloseAllDone(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (f *File) checkClose() error {
	if f.closed {
		return newError(KindInvalidOperation, "close", f.filename, nil)
	}
	if f.members > 0 {
		f.ctx.log.Debug("close with live members",
			zap.String("file", f.filename), zap.Int("members", f.members))
		return newError(KindInvalidOperation, "close", f.filename, nil)
	}
	return nil
}

// CloseAllDone releases f without writing it. If f was written as an
// executable or shared object, the file gets the execute bits the
// umask allows. The stream is closed only if the backend's cleanup
// succeeds.
func (f *File) CloseAllDone() error {
	if err := f.checkClose(); err != nil {
		return err
	}
	var result *multierror.Error
	err := f.closeAndCleanup()
	if err != nil {
		result = multierror.Append(result, err)
	}
	// A member shares its archive's stream and never closes it.
	if err == nil && f.iovec != nil && f.myArchive == nil {
		if cerr := f.iovec.Close(); cerr != nil {
			result = multierror.Append(result, wrapSys("close", f.filename, cerr))
		} else {
			f.maybeMakeExecutable()
		}
	}
	if f.myArchive != nil {
		f.myArchive.members--
	}
	f.delete()
	return result.ErrorOrNil()
}

func (f *File) maybeMakeExecutable() {
	if f.direction != WriteDirection || f.flags&(ExecP|Dynamic) == 0 || f.flags&InMemory != 0 {
		return
	}
	fi, err := os.Stat(f.filename)
	// Leave devices such as /dev/null alone.
	if err != nil || !fi.Mode().IsRegular() {
		return
	}
	if err := os.Chmod(f.filename, execMode(fi.Mode())); err != nil {
		f.ctx.log.Debug("making executable", zap.String("file", f.filename), zap.Error(err))
	}
}
