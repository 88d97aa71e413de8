// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package channel

import (
	"github.com/Thermoquad/seaport/pkg/seatalk"
)

// MarkedPort is unavailable on this platform
type MarkedPort struct{}

// MarkedSupported reports whether OpenMarked can work on this platform
const MarkedSupported = false

// OpenMarked always fails here; use unmarked SeaTalk framing instead
func OpenMarked(name string, baudRate int) (*MarkedPort, error) {
	return nil, ErrParityMarkUnsupported
}

func (p *MarkedPort) Read([]byte) (int, error)       { return 0, ErrParityMarkUnsupported }
func (p *MarkedPort) Write([]byte) (int, error)      { return 0, ErrParityMarkUnsupported }
func (p *MarkedPort) Close() error                   { return nil }
func (p *MarkedPort) Name() string                   { return "" }
func (p *MarkedPort) SetParity(seatalk.Parity) error { return ErrParityMarkUnsupported }
