// Package revline reads lines of a file from the last one to the first.
//
// The file is read backward in fixed-size blocks so only the block being
// scanned and the current (possibly partial) line are kept in memory.
//
//	r := revline.New(f, size)
//	for r.Next() {
//	    line := r.Line()
//	    // ...
//	}
//	if err := r.Err(); err != nil {
//	    // ...
//	}
//
// Lines are split on '\n' and a trailing '\r' is removed. A '\n' at the very
// end of the data terminates the last line, it doesn't start an empty one.
package revline

import (
	"bytes"
	"fmt"
	"io"
)

// DefaultChunkSize is how much we read at a time if not told otherwise
const DefaultChunkSize = 64 * 1024

// Reader yields lines of r in reverse order. It is a single pass iterator.
type Reader struct {
	r         io.ReaderAt
	chunkSize int

	// file offset of buf[0]. Everything before pos is not read yet
	pos int64
	// data between pos and the end of the last returned line,
	// not yet split into lines. It's mem[start:start+len(buf)]
	buf []byte
	// chunks are read into mem in front of buf
	mem   []byte
	start int

	line    []byte
	lineOff int64

	err  error
	done bool
}

// New creates a Reader over the first size bytes of r
func New(r io.ReaderAt, size int64) *Reader {
	return NewSize(r, size, DefaultChunkSize)
}

// NewSize is like New but reads chunkSize bytes at a time.
// chunkSize <= 0 means DefaultChunkSize.
func NewSize(r io.ReaderAt, size int64, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	res := &Reader{
		r:         r,
		chunkSize: chunkSize,
		pos:       size,
	}
	if size <= 0 {
		res.done = true
		return res
	}
	// "a\n" is a single line "a", same as bufio.Scanner
	var last [1]byte
	if _, err := r.ReadAt(last[:], size-1); err != nil && err != io.EOF {
		res.err = err
		return res
	}
	if last[0] == '\n' {
		res.pos = size - 1
	}
	return res
}

// Next advances to the previous line. Returns false at the beginning of
// the data or on error. Check Err() after it returns false.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	for {
		if i := bytes.LastIndexByte(r.buf, '\n'); i >= 0 {
			r.setLine(r.buf[i+1:], r.pos+int64(i)+1)
			r.buf = r.buf[:i]
			return true
		}
		if r.pos == 0 {
			// what's left is the first line
			r.setLine(r.buf, 0)
			r.buf = nil
			r.mem = nil
			r.done = true
			return true
		}
		if err := r.readPrevChunk(); err != nil {
			r.err = err
			return false
		}
	}
}

func (r *Reader) setLine(line []byte, off int64) {
	r.line = bytes.TrimSuffix(line, []byte{'\r'})
	r.lineOff = off
}

// readPrevChunk prepends up to chunkSize bytes before pos to buf
func (r *Reader) readPrevChunk() error {
	n := int(min(int64(r.chunkSize), r.pos))
	off := r.pos - int64(n)
	if r.start < n {
		r.makeRoom(n)
	}
	start := r.start - n
	nRead, err := r.r.ReadAt(r.mem[start:r.start], off)
	if err != nil && !(err == io.EOF && nRead == n) {
		return fmt.Errorf("revline: read %d bytes at offset %d: %w", n, off, err)
	}
	r.buf = r.mem[start : r.start+len(r.buf)]
	r.start = start
	r.pos = off
	return nil
}

// makeRoom moves buf to the end of mem so that there are at least n free
// bytes in front of it. mem doubles when buf takes more than half of it
// so a line of length L costs O(L) copying.
func (r *Reader) makeRoom(n int) {
	mem := r.mem
	need := n + len(r.buf)
	if need > len(mem) || len(r.buf) > len(mem)/2 {
		mem = make([]byte, max(2*len(r.mem), 2*need))
	}
	start := len(mem) - len(r.buf)
	copy(mem[start:], r.buf)
	r.mem = mem
	r.start = start
	r.buf = mem[start:]
}

// Line returns the current line without the line terminator.
// Only valid until the next call to Next.
func (r *Reader) Line() []byte {
	return r.line
}

// Offset returns the position of the first byte of the current line
func (r *Reader) Offset() int64 {
	return r.lineOff
}

// Err returns the first read error. Reaching the start of data is not an error.
func (r *Reader) Err() error {
	return r.err
}
