// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package channel

import (
	"fmt"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Thermoquad/seaport/pkg/seatalk"
)

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// MarkedPort is a serial port in SPACE parity with PARMRK set, so a byte
// received with the ninth bit set arrives as FF 00 xx and a data FF as FF FF
type MarkedPort struct {
	file *os.File
	raw  syscall.RawConn
	name string

	mu sync.Mutex
}

// MarkedSupported reports whether OpenMarked can work on this platform
const MarkedSupported = true

// OpenMarked opens name for parity-marked SeaTalk input
func OpenMarked(name string, baudRate int) (*MarkedPort, error) {
	speed, ok := baudRates[baudRate]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", baudRate)
	}

	// non-blocking so reads go through the runtime poller and Close
	// unblocks them
	file, err := os.OpenFile(name, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	raw, err := file.SyscallConn()
	if err != nil {
		file.Close()
		return nil, err
	}

	p := &MarkedPort{file: file, raw: raw, name: name}
	err = p.control(func(fd int) error {
		t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
		if err != nil {
			return err
		}
		t.Iflag = unix.INPCK | unix.PARMRK
		t.Oflag = 0
		t.Lflag = 0
		t.Cflag = unix.CS8 | unix.CREAD | unix.CLOCAL | unix.PARENB | unix.CMSPAR | speed
		t.Ispeed = speed
		t.Ospeed = speed
		t.Cc[unix.VMIN] = 1
		t.Cc[unix.VTIME] = 0
		if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
			return err
		}
		return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	return p, nil
}

func (p *MarkedPort) control(fn func(fd int) error) error {
	var ferr error
	if err := p.raw.Control(func(fd uintptr) { ferr = fn(int(fd)) }); err != nil {
		return err
	}
	return ferr
}

func (p *MarkedPort) Read(b []byte) (int, error) {
	return p.file.Read(b)
}

func (p *MarkedPort) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

func (p *MarkedPort) Close() error {
	return p.file.Close()
}

// Name returns the device name
func (p *MarkedPort) Name() string {
	return p.name
}

// SetParity waits for pending output to drain and switches between MARK
// and SPACE parity
func (p *MarkedPort) SetParity(parity seatalk.Parity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.control(func(fd int) error {
		t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
		if err != nil {
			return err
		}
		if parity == seatalk.ParityMark {
			t.Cflag |= unix.PARODD
		} else {
			t.Cflag &^= unix.PARODD
		}
		return unix.IoctlSetTermios(fd, unix.TCSETSW, t)
	})
	if err != nil {
		return fmt.Errorf("set %s parity on %s: %w", parity, p.name, err)
	}
	return nil
}
