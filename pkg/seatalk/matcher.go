// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"github.com/Thermoquad/seaport/pkg/match"
)

// Matcher states
const (
	stateIdle = iota
	stateCommand
	stateAttribute
	statePayload
)

// Matcher finds datagram boundaries in a raw bus stream
type Matcher struct {
	framing   Framing
	state     int
	escaped   bool
	command   byte
	attribute byte
	need      int
	n         int
	payload   [MaxPayload]byte
	raw       []byte
	err       *FrameError
	frames    uint64
	errors    uint64
}

// NewMatcher creates a matcher for the given framing
func NewMatcher(framing Framing) *Matcher {
	return &Matcher{
		framing: framing,
		raw:     make([]byte, 0, 2*MaxFrameSize+4),
	}
}

// Match consumes one raw byte. It reports Match when a datagram completes and
// Error when bytes had to be dropped; Err describes the drop.
func (m *Matcher) Match(b byte) match.Status {
	if len(m.raw) == cap(m.raw) {
		m.raw = m.raw[:0]
	}
	m.raw = append(m.raw, b)

	if m.framing == FramingUnmarked {
		return m.matchUnmarked(b)
	}

	// the byte after FF 00 is the command, taken literally
	if m.state == stateCommand && !m.escaped {
		m.command = b
		m.state = stateAttribute
		return match.WillMatch
	}

	if m.escaped {
		m.escaped = false
		switch b {
		case MarkError:
			if m.state == stateAttribute || m.state == statePayload {
				m.raw = m.raw[:len(m.raw)-2]
				status := m.fail(ErrTruncated)
				m.state = stateCommand
				m.raw = append(m.raw, MarkEscape, MarkError)
				return status
			}
			m.state = stateCommand
			return match.Ok
		case MarkEscape:
			return m.data(MarkEscape)
		default:
			return m.fail(ErrEscape)
		}
	}

	if b == MarkEscape {
		m.escaped = true
		if m.state == stateIdle {
			return match.Ok
		}
		return match.WillMatch
	}
	return m.data(b)
}

func (m *Matcher) data(b byte) match.Status {
	switch m.state {
	case stateAttribute:
		m.attribute = b
		m.need = PayloadLength(b)
		m.n = 0
		m.state = statePayload
		return match.WillMatch
	case statePayload:
		m.payload[m.n] = b
		m.n++
		if m.n == m.need {
			return m.complete()
		}
		return match.WillMatch
	}
	return m.fail(ErrNoise)
}

func (m *Matcher) matchUnmarked(b byte) match.Status {
	switch m.state {
	case stateIdle:
		if lookup(b) == nil {
			return m.fail(ErrUnknownCommand)
		}
		m.command = b
		m.state = stateAttribute
		return match.WillMatch
	case stateAttribute:
		if op := lookup(m.command); b != op.attribute {
			return m.fail(ErrAttribute)
		}
	}
	return m.data(b)
}

func (m *Matcher) complete() match.Status {
	m.frames++
	m.state = stateIdle
	m.raw = m.raw[:0]
	return match.Match
}

func (m *Matcher) fail(kind ErrorKind) match.Status {
	m.errors++
	m.err = &FrameError{
		Kind:    kind,
		Command: m.command,
		Raw:     append([]byte(nil), m.raw...),
	}
	m.state = stateIdle
	m.escaped = false
	m.raw = m.raw[:0]
	return match.Error
}

// Frame returns the datagram completed by the last Match
func (m *Matcher) Frame() *Frame {
	payload := make([]byte, m.n)
	copy(payload, m.payload[:m.n])
	return NewFrame(m.command, m.attribute, payload)
}

// Err returns the reason for the last Error
func (m *Matcher) Err() *FrameError {
	return m.err
}

// Idle reports whether the matcher is between datagrams
func (m *Matcher) Idle() bool {
	return m.state == stateIdle && !m.escaped
}

// Reset drops any partial datagram
func (m *Matcher) Reset() {
	m.state = stateIdle
	m.escaped = false
	m.n = 0
	m.raw = m.raw[:0]
}

// Frames returns the number of completed datagrams
func (m *Matcher) Frames() uint64 { return m.frames }

// Errors returns the number of drops
func (m *Matcher) Errors() uint64 { return m.errors }
