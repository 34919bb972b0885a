// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bfd

import (
	"errors"
	"fmt"
)

// A Kind classifies an error. Callers branch on kinds, for example
// to tell "not this format, try the next" from "the disk failed".
//
// Kind implements error so that errors.Is(err, KindWrongFormat)
// reports whether err is of that kind.
type Kind int

const (
	KindNone Kind = iota
	KindSystemCall
	KindInvalidTarget
	KindWrongFormat
	KindInvalidOperation
	KindNoMemory
	KindNoSymbols
	KindMalformedArchive
	KindFileNotRecognized
	KindFileAmbiguouslyRecognized
	KindNoContents
	KindNonrepresentable
	KindNoDebugSection
	KindBadValue
	KindFileTruncated
	KindFileTooBig
)

var kindMessages = [...]string{
	KindNone:                      "no error",
	KindSystemCall:                "system call error",
	KindInvalidTarget:             "invalid bfd target",
	KindWrongFormat:               "file in wrong format",
	KindInvalidOperation:          "invalid operation",
	KindNoMemory:                  "memory exhausted",
	KindNoSymbols:                 "no symbols",
	KindMalformedArchive:          "malformed archive",
	KindFileNotRecognized:         "file format not recognized",
	KindFileAmbiguouslyRecognized: "file format is ambiguous",
	KindNoContents:                "section has no contents",
	KindNonrepresentable:          "nonrepresentable section on output",
	KindNoDebugSection:            "symbol needs debug section which does not exist",
	KindBadValue:                  "bad value",
	KindFileTruncated:             "file truncated",
	KindFileTooBig:                "file too big",
}

func (k Kind) Error() string {
	if k >= 0 && int(k) < len(kindMessages) {
		return kindMessages[k]
	}
	return "invalid error code"
}

// An Error records a failed operation on a file.
type Error struct {
	Kind Kind
	Op   string // e.g. "open", "read"
	Name string // file name, if known
	Err  error  // underlying error, if any
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	switch {
	case e.Err == nil:
		return msg + ": " + e.Kind.Error()
	case e.Kind == KindSystemCall:
		// Keep the OS message as the whole explanation.
		return msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is e's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of err. It returns KindNone for nil and
// KindSystemCall for errors that did not originate in this package,
// which come from the operating system.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindSystemCall
}

func newError(k Kind, op, name string, err error) *Error {
	return &Error{Kind: k, Op: op, Name: name, Err: err}
}

// wrapSys wraps an error returned by the OS or an I/O vector. Errors
// that already carry a Kind keep it.
func wrapSys(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindSystemCall, op, name, err)
}
