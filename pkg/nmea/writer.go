// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"io"
	"sync"
)

// Writer frames sentence bodies with checksum and CRLF. Every sentence is
// handed to the underlying writer in one Write call so datagram and message
// oriented sinks receive whole sentences.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	buf     []byte
	pending []byte
	count   uint64
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   w,
		buf: make([]byte, 0, MaxSentenceLength+8),
	}
}

// WriteSentence writes body followed by "*HH\r\n". The body starts with '$'
// or '!' and contains no checksum.
func (w *Writer) WriteSentence(body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = AppendChecksum(w.buf[:0], body)
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	w.count++
	return nil
}

// Write accepts raw sentence text. Complete lines are re-framed with a freshly
// computed checksum; a trailing partial line is held until its LF arrives.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	pending := append(w.pending, p...)
	w.pending = nil
	w.mu.Unlock()

	for {
		nl := -1
		for i, b := range pending {
			if b == '\n' {
				nl = i
				break
			}
		}
		if nl < 0 {
			break
		}
		line := pending[:nl]
		pending = pending[nl+1:]
		body := bodyOf(line)
		if len(body) == 0 {
			continue
		}
		if err := w.WriteSentence(body); err != nil {
			return 0, err
		}
	}

	w.mu.Lock()
	if len(pending) > 0 {
		w.pending = append(w.pending[:0], pending...)
	}
	w.mu.Unlock()
	return len(p), nil
}

// Count returns the number of sentences written
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// bodyOf strips CR, the checksum suffix and anything before the start character
func bodyOf(line []byte) []byte {
	start := -1
	for i, b := range line {
		if b == StartSentence || b == StartEncapsulated {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	line = line[start:]
	for i, b := range line {
		if b == ChecksumDelimiter || b == '\r' {
			return line[:i]
		}
	}
	return line
}
