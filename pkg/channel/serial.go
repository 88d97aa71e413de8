// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/Thermoquad/seaport/pkg/seatalk"
)

// SerialPort wraps a serial port whose parity can be switched while open
type SerialPort struct {
	port serial.Port
	name string

	mu   sync.Mutex
	mode serial.Mode
}

// OpenSerial opens a serial port at 8N1
func OpenSerial(name string, baudRate int) (*SerialPort, error) {
	return openSerial(name, baudRate, serial.NoParity)
}

// OpenSerialSpace opens a port in SPACE parity, the idle state of the
// SeaTalk bus
func OpenSerialSpace(name string, baudRate int) (*SerialPort, error) {
	return openSerial(name, baudRate, serial.SpaceParity)
}

func openSerial(name string, baudRate int, parity serial.Parity) (*SerialPort, error) {
	mode := serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   parity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, &mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return &SerialPort{port: port, name: name, mode: mode}, nil
}

func (s *SerialPort) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}

// Name returns the device name
func (s *SerialPort) Name() string {
	return s.name
}

// SetParity drains pending output and switches parity
func (s *SerialPort) SetParity(p seatalk.Parity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.port.Drain(); err != nil {
		return fmt.Errorf("drain %s: %w", s.name, err)
	}
	mode := s.mode
	mode.Parity = serial.SpaceParity
	if p == seatalk.ParityMark {
		mode.Parity = serial.MarkParity
	}
	if err := s.port.SetMode(&mode); err != nil {
		return fmt.Errorf("set %s parity on %s: %w", p, s.name, err)
	}
	s.mode = mode
	return nil
}
