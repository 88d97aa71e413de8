// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ring implements a fixed capacity circular byte buffer with a mark
// that pins the start of the candidate currently being matched.
package ring

import (
	"errors"
	"io"
)

// DefaultSize matches the read size used by the serial readers
const DefaultSize = 128

// Buffer is a circular byte buffer. Cursors only grow; positions are taken
// modulo the capacity. The invariant is mark <= read <= write <= mark+len(buf).
type Buffer struct {
	buf   []byte
	mark  uint64
	read  uint64
	write uint64
}

// New creates a buffer with the given capacity
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{buf: make([]byte, size)}
}

// Cap returns the capacity
func (r *Buffer) Cap() int {
	return len(r.buf)
}

// Fill performs one Read into the contiguous free region. A full buffer
// returns (0, nil) without reading; the caller drains with Get first.
func (r *Buffer) Fill(src io.Reader) (int, error) {
	free := uint64(len(r.buf)) - (r.write - r.mark)
	if free == 0 {
		return 0, nil
	}
	start := r.write % uint64(len(r.buf))
	seg := uint64(len(r.buf)) - start
	if seg > free {
		seg = free
	}
	n, err := src.Read(r.buf[start : start+seg])
	if n < 0 || uint64(n) > seg {
		return 0, errors.New("ring: invalid read count")
	}
	r.write += uint64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Get pops the oldest unread byte. With mark set the mark first moves to this
// byte, starting a new candidate. Get must not be called without HasRemaining.
func (r *Buffer) Get(mark bool) byte {
	if mark {
		r.mark = r.read
	}
	b := r.buf[r.read%uint64(len(r.buf))]
	r.read++
	return b
}

// Unget pushes the last byte back so the next Get returns it again. It is a
// no-op when the read cursor is already at the mark.
func (r *Buffer) Unget() {
	if r.read > r.mark {
		r.read--
	}
}

// HasRemaining reports whether unread bytes are available
func (r *Buffer) HasRemaining() bool {
	return r.read < r.write
}

// Remaining returns the number of unread bytes
func (r *Buffer) Remaining() int {
	return int(r.write - r.read)
}

// IsFull reports whether Fill has no room left. Bytes of the marked candidate
// count as occupied.
func (r *Buffer) IsFull() bool {
	return r.write-r.mark == uint64(len(r.buf))
}

// Marked returns the bytes from the mark up to the read cursor
func (r *Buffer) Marked() View {
	return r.view(r.mark, r.read)
}

// Sub returns bytes [start, end) relative to the mark
func (r *Buffer) Sub(start, end int) View {
	if start < 0 || end < start || r.mark+uint64(end) > r.read {
		panic("ring: sub-sequence out of range")
	}
	return r.view(r.mark+uint64(start), r.mark+uint64(end))
}

// Rewind moves the read cursor back to the mark so the candidate can be
// scanned again
func (r *Buffer) Rewind() {
	r.read = r.mark
}

// Discard drops the marked candidate
func (r *Buffer) Discard() {
	r.mark = r.read
}

// Reset empties the buffer
func (r *Buffer) Reset() {
	r.mark, r.read, r.write = 0, 0, 0
}

func (r *Buffer) view(from, to uint64) View {
	if from == to {
		return View{}
	}
	size := uint64(len(r.buf))
	start := from % size
	n := to - from
	if start+n <= size {
		return View{a: r.buf[start : start+n]}
	}
	return View{a: r.buf[start:], b: r.buf[:start+n-size]}
}
