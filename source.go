package tailmerge

import (
	"bytes"
	"io"
)

// DefaultBufferSize is the initial per-source buffer capacity. Buffers grow
// (and never shrink) when a single line outgrows them, so total memory is
// linear with the number of sources, not with the file sizes.
const DefaultBufferSize = 1 << 20

// minBufferSize keeps the quarter-of-capacity growth rule meaningful; below
// this, len/4 truncates to zero and a full buffer would never grow.
const minBufferSize = 16

// maxEmptyReads bounds Reads of no bytes and no error, like bufio does.
const maxEmptyReads = 100

// A Source is one input stream plus its incremental line buffer. Bytes
// [0, read) of buf are valid and not yet fully consumed; bytes past read are
// undefined.
type Source struct {
	path []byte
	r    io.Reader
	buf  []byte
	read int
}

// NewSource returns a Source reading from r, identified in headers by path.
func NewSource(path string, r io.Reader) *Source {
	return NewSourceSize(path, r, DefaultBufferSize)
}

// NewSourceSize is NewSource with an explicit initial buffer capacity.
// Sizes below a small minimum are clamped.
func NewSourceSize(path string, r io.Reader, size int) *Source {
	if size < minBufferSize {
		size = minBufferSize
	}
	return &Source{
		path: []byte(path),
		r:    r,
		buf:  make([]byte, size),
	}
}

// Path returns the name used in headers, verbatim.
func (s *Source) Path() string { return string(s.path) }

// line resolves a queued [start, start+n) range against the buffer. The
// returned slice is valid only until the next ReadNextLine call.
func (s *Source) line(start, n int) []byte {
	return s.buf[start : start+n]
}

// nextBuffered scans for a complete line starting at offset from, without
// doing any I/O. It returns the line's length (delimiter included) if one is
// already buffered.
func (s *Source) nextBuffered(from int) (int, bool) {
	if i := bytes.IndexByte(s.buf[from:s.read], '\n'); i >= 0 {
		return i + 1, true
	}
	return 0, false
}

// ReadNextLine discards the consumed bytes at the front of the buffer,
// compacts the remainder to offset 0, and reads until a complete line is
// buffered. It returns the length of the buffer prefix holding that line,
// trailing '\n' included. io.EOF means the source is exhausted; any other
// error is a fatal *OpError. A final unterminated line gets a '\n'
// synthesized so every line handed out ends with the delimiter.
//
// This is the only place the buffer is mutated or reallocated. Every queued
// range into this source must have been consumed, and any output referencing
// it flushed, before calling.
func (s *Source) ReadNextLine(consumed int) (int, error) {
	copy(s.buf, s.buf[consumed:s.read])
	s.read -= consumed
	for empty := 0; ; {
		n, err := s.r.Read(s.buf[s.read:])
		if n > 0 {
			scanned := s.read
			s.read += n
			// Only the new bytes can hold a '\n': everything before
			// scanned was searched on earlier iterations or calls.
			if i := bytes.IndexByte(s.buf[scanned:s.read], '\n'); i >= 0 {
				return scanned + i + 1, nil
			}
			if len(s.buf)-s.read < len(s.buf)/4 {
				grown := make([]byte, 2*len(s.buf))
				copy(grown, s.buf[:s.read])
				s.buf = grown
			}
		}
		switch {
		case err == io.EOF:
			if s.read == 0 {
				return 0, io.EOF
			}
			// No newline at end of file; add one.
			if s.read == len(s.buf) {
				s.buf = append(s.buf, 0)
			}
			s.buf[s.read] = '\n'
			s.read++
			return s.read, nil
		case err != nil:
			return 0, ReadError(string(s.path), err)
		case n == 0:
			if empty++; empty == maxEmptyReads {
				return 0, ReadError(string(s.path), io.ErrNoProgress)
			}
		default:
			empty = 0
		}
	}
}
