// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"fmt"
	"time"
)

// Frame is one complete SeaTalk datagram
type Frame struct {
	command   byte
	attribute byte
	payload   []byte
	timestamp time.Time
}

// NewFrame builds a frame from its parts
func NewFrame(command, attribute byte, payload []byte) *Frame {
	return &Frame{
		command:   command,
		attribute: attribute,
		payload:   payload,
		timestamp: time.Now(),
	}
}

// Command returns the command byte
func (f *Frame) Command() byte { return f.command }

// Attribute returns the attribute byte
func (f *Frame) Attribute() byte { return f.attribute }

// Payload returns the data bytes following the attribute
func (f *Frame) Payload() []byte { return f.payload }

// Timestamp returns when the frame completed
func (f *Frame) Timestamp() time.Time { return f.timestamp }

// Bytes returns the datagram without parity marking
func (f *Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.payload)+2)
	out = append(out, f.command, f.attribute)
	return append(out, f.payload...)
}

// PayloadLength returns the data byte count announced by an attribute
func PayloadLength(attribute byte) int {
	return int(attribute&0x0F) + 1
}

// Uint16 reads a little endian word from the payload
func (f *Frame) Uint16(offset int) uint16 {
	return uint16(f.payload[offset]) | uint16(f.payload[offset+1])<<8
}

// Encode renders a frame as it arrives from a PARMRK port: the command byte is
// prefixed with FF 00 and data FF bytes are doubled.
func Encode(command, attribute byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)*2+5)
	out = append(out, MarkEscape, MarkError, command)
	for _, b := range append([]byte{attribute}, payload...) {
		if b == MarkEscape {
			out = append(out, MarkEscape)
		}
		out = append(out, b)
	}
	return out
}

// ErrorKind classifies a dropped frame
type ErrorKind int

const (
	ErrNoise          ErrorKind = iota // data byte outside any frame
	ErrEscape                          // FF followed by something other than 00 or FF
	ErrTruncated                       // command marker before the frame was complete
	ErrAttribute                       // attribute disagrees with the opcode table
	ErrPattern                         // fixed payload bytes disagree with the opcode table
	ErrUnknownCommand                  // command byte absent from the opcode table (unmarked framing)
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case ErrNoise:
		return "noise"
	case ErrEscape:
		return "bad escape"
	case ErrTruncated:
		return "truncated"
	case ErrAttribute:
		return "attribute mismatch"
	case ErrPattern:
		return "pattern mismatch"
	case ErrUnknownCommand:
		return "unknown command"
	default:
		return "unknown"
	}
}

// FrameError describes why bytes were dropped
type FrameError struct {
	Kind    ErrorKind
	Command byte
	Raw     []byte
}

func (e *FrameError) Error() string {
	if len(e.Raw) == 0 {
		return fmt.Sprintf("seatalk: %s", e.Kind)
	}
	return fmt.Sprintf("seatalk: %s (command 0x%02X, raw % X)", e.Kind, e.Command, e.Raw)
}
