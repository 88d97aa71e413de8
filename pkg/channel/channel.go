// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package channel opens the byte sources seaport reads from: serial ports in
// NMEA or SeaTalk framing, the NMEA UDP multicast group and websocket
// bridges to remote serial ports.
package channel

import (
	"errors"
	"io"
	"sync"
)

// Conn is a bidirectional byte channel
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

var (
	// ErrConnectionClosed is returned when reading from a closed websocket
	ErrConnectionClosed = errors.New("websocket connection closed")
	// ErrParityMarkUnsupported is returned where the OS cannot report
	// parity errors inline
	ErrParityMarkUnsupported = errors.New("parity-marked serial input not supported on this platform")
	// ErrReadOnly is returned when writing to a receive-only channel
	ErrReadOnly = errors.New("channel is read-only")
)

// onceCloser makes Close idempotent
type onceCloser struct {
	Conn
	once sync.Once
	err  error
}

func (o *onceCloser) Close() error {
	o.once.Do(func() { o.err = o.Conn.Close() })
	return o.err
}

// packetReader hands out whole packets across short reads
type packetReader struct {
	next   func() ([]byte, error)
	buf    []byte
	offset int
}

func (r *packetReader) Read(p []byte) (int, error) {
	for r.offset >= len(r.buf) {
		data, err := r.next()
		if err != nil {
			return 0, err
		}
		r.buf = data
		r.offset = 0
	}
	n := copy(p, r.buf[r.offset:])
	r.offset += n
	return n, nil
}
