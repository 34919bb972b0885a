// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrSize is returned when a payload does not decompress to exactly
// the recorded size.
var ErrSize = errors.New("decompressed size does not match header")

var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	// Zero frames keep empty input decodable.
	return zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true))
})

// Bound returns an upper bound on the compressed size of n bytes.
func Bound(m Method, n int) int {
	switch m {
	case Zstd:
		if enc, err := zstdEncoder(); err == nil {
			return enc.MaxEncodedSize(n)
		}
	}
	// compressBound from zlib.
	return n + n>>12 + n>>14 + n>>25 + 13
}

// Compress compresses src with m. It never returns the input slice.
func Compress(m Method, src []byte) ([]byte, error) {
	switch m {
	case Zlib:
		var buf bytes.Buffer
		buf.Grow(Bound(Zlib, len(src)))
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Zstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(src, make([]byte, 0, Bound(Zstd, len(src)))), nil
	}
	return nil, fmt.Errorf("unsupported compression method %v", m)
}

// Decompress decompresses src with m, which must produce exactly size
// bytes. Concatenated zlib streams are decoded back to back until the
// output is full. The output buffer grows as data arrives, so a
// corrupt size costs no more memory than the payload expands to.
func Decompress(m Method, src []byte, size uint64) ([]byte, error) {
	if size > uint64(maxInt) {
		return nil, ErrSize
	}
	switch m {
	case Zlib:
		return inflate(src, int64(size))
	case Zstd:
		zr, err := zstd.NewReader(bytes.NewReader(src), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out := newOutput(size)
		if _, err := io.CopyN(out, zr, int64(size)); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrSize
			}
			return nil, err
		}
		var extra [1]byte
		if n, _ := zr.Read(extra[:]); n > 0 {
			return nil, ErrSize
		}
		return out.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported compression method %v", m)
}

const maxInt = int(^uint(0) >> 1)

// initialOutput caps the buffer allocated before any data is decoded.
const initialOutput = 64 << 10

func newOutput(size uint64) *bytes.Buffer {
	out := new(bytes.Buffer)
	out.Grow(int(min(size, initialOutput)))
	return out
}

func inflate(src []byte, size int64) ([]byte, error) {
	out := newOutput(uint64(size))
	br := bytes.NewReader(src)
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	for {
		_, err := io.CopyN(out, zr, size-int64(out.Len()))
		if err == nil {
			return out.Bytes(), nil
		}
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, err
		}
		// This stream ended early. Another may follow it.
		if br.Len() == 0 {
			return nil, ErrSize
		}
		if err := zr.(zlib.Resetter).Reset(br, nil); err != nil {
			return nil, err
		}
	}
}
