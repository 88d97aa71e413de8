// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package seatalk decodes the SeaTalk1 helm bus into NMEA 0183 sentences.
//
// SeaTalk1 is a 4800 baud single wire bus using 9 bit characters. The ninth
// bit flags the command byte that starts each datagram. A datagram is
//
//	command, attribute, (attribute & 0x0F) + 1 data bytes
//
// With the port opened in SPACE parity and PARMRK, the kernel reports every
// command byte as a parity error: FF 00 cc. A literal FF data byte is
// delivered as FF FF.
package seatalk

// Bus parameters
const (
	BaudRate      = 4800
	MinFrameSize  = 3
	MaxFrameSize  = 18 // attribute nibble 0x0F
	MaxPayload    = 16
	Talker        = "ST"
	DefaultPrefix = "SEA"
)

// Parity marking bytes
const (
	MarkEscape byte = 0xFF
	MarkError  byte = 0x00
)

// Commands
const (
	CmdDepth         byte = 0x00
	CmdEquipmentID   byte = 0x01
	CmdSpeed         byte = 0x20
	CmdWaterTemp     byte = 0x23
	CmdDisplayUnits  byte = 0x24
	CmdSpeedPrecise  byte = 0x26
	CmdWaterTempFine byte = 0x27
	CmdLampIntensity byte = 0x30
	CmdUnknown60     byte = 0x60
	CmdUnknown65     byte = 0x65
)

// Depth flags, YZ byte of the depth datagram
const (
	DepthAnchorAlarm = 0x80
	DepthMetric      = 0x40
	DepthDefective   = 0x04
	DepthDeepAlarm   = 0x02
	DepthShallow     = 0x01
)

// Lamp intensity codes, indexed by level L0..L3
var LampCodes = [4]byte{0x00, 0x04, 0x08, 0x0C}

// Framing selects how datagram starts are found in the byte stream
type Framing int

const (
	// FramingMarked relies on PARMRK parity error markers
	FramingMarked Framing = iota
	// FramingUnmarked infers boundaries from the opcode table
	FramingUnmarked
)

// String returns the framing name
func (f Framing) String() string {
	switch f {
	case FramingMarked:
		return "marked"
	case FramingUnmarked:
		return "unmarked"
	default:
		return "unknown"
	}
}

// ParseFraming converts a configuration value to a Framing
func ParseFraming(s string) (Framing, bool) {
	switch s {
	case "marked", "":
		return FramingMarked, true
	case "unmarked":
		return FramingUnmarked, true
	}
	return 0, false
}

// Parity is the serial parity used to transmit on the bus
type Parity int

const (
	ParitySpace Parity = iota // data bytes
	ParityMark                // command bytes
)

// String returns the parity name
func (p Parity) String() string {
	if p == ParityMark {
		return "MARK"
	}
	return "SPACE"
}
