// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"errors"
	"fmt"
	"io"

	"github.com/Thermoquad/seaport/pkg/match"
	"github.com/Thermoquad/seaport/pkg/nmea"
)

// ParityPort is a bus port whose parity can be switched between writes
type ParityPort interface {
	io.Writer
	SetParity(p Parity) error
}

// Lamp command steps
const (
	StepMarkParity = iota + 1
	StepCommand
	StepSpaceParity
	StepPayload
)

// ErrLampLevel is returned for levels outside 0..3
var ErrLampLevel = errors.New("lamp level out of range")

// LampError reports which step of the lamp command failed
type LampError struct {
	Step     int
	Err      error
	Restored bool // SPACE parity was restored after the failure
}

func (e *LampError) Error() string {
	state := "port parity unchanged"
	if e.Misconfigured() {
		state = "port left in MARK parity"
	}
	return fmt.Sprintf("lamp command failed at step %d (%s): %v", e.Step, state, e.Err)
}

func (e *LampError) Unwrap() error {
	return e.Err
}

// Misconfigured reports whether the port may still be in MARK parity
func (e *LampError) Misconfigured() bool {
	if e.Step == StepMarkParity || e.Step == StepPayload {
		return false
	}
	return !e.Restored
}

// WriteLamp sends the lamp intensity datagram 30 00 0X. The command byte needs
// the ninth bit set, so it is sent alone in MARK parity and the rest in SPACE.
func WriteLamp(p ParityPort, level int) error {
	if level < 0 || level >= len(LampCodes) {
		return fmt.Errorf("%w: %d", ErrLampLevel, level)
	}

	if err := p.SetParity(ParityMark); err != nil {
		return &LampError{Step: StepMarkParity, Err: err}
	}
	if _, err := p.Write([]byte{CmdLampIntensity}); err != nil {
		restored := p.SetParity(ParitySpace) == nil
		return &LampError{Step: StepCommand, Err: err, Restored: restored}
	}
	if err := p.SetParity(ParitySpace); err != nil {
		restored := p.SetParity(ParitySpace) == nil
		return &LampError{Step: StepSpaceParity, Err: err, Restored: restored}
	}
	if _, err := p.Write([]byte{0x00, LampCodes[level]}); err != nil {
		return &LampError{Step: StepPayload, Err: err, Restored: true}
	}
	return nil
}

// LampMatcher recognizes "$P<prefix>,ST,LAMP,<level>" requests in an NMEA
// stream written towards the bus
type LampMatcher struct {
	matcher *match.Wildcard[int]
	line    []byte
	offset  int
}

// NewLampMatcher creates a matcher for the given proprietary prefix
func NewLampMatcher(prefix string) *LampMatcher {
	head := "$P" + prefix + ",ST,LAMP,"
	return &LampMatcher{
		matcher: match.MustCompile(match.Pattern[int]{Expr: head + "?*\n"}),
		line:    make([]byte, 0, nmea.MaxSentenceLength),
		offset:  len(head),
	}
}

// LampRequest builds the sentence NewLampMatcher recognizes
func LampRequest(prefix string, level int) ([]byte, error) {
	if level < 0 || level >= len(LampCodes) {
		return nil, fmt.Errorf("%w: %d", ErrLampLevel, level)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return nmea.AppendChecksum(nil, []byte(fmt.Sprintf("$P%s,ST,LAMP,%d", prefix, level))), nil
}

// Feed consumes bytes and returns the lamp levels requested by every complete
// lamp sentence found
func (l *LampMatcher) Feed(p []byte) []int {
	var levels []int
	for _, b := range p {
		if b == nmea.StartSentence {
			l.matcher.Reset()
			l.line = l.line[:0]
		}
		if len(l.line) < cap(l.line) {
			l.line = append(l.line, b)
		}
		switch l.matcher.Match(b) {
		case match.Match:
			if level, ok := l.level(); ok {
				levels = append(levels, level)
			}
			l.line = l.line[:0]
		case match.Error:
			l.line = l.line[:0]
		}
	}
	return levels
}

func (l *LampMatcher) level() (int, bool) {
	if len(l.line) <= l.offset {
		return 0, false
	}
	if err := nmea.Verify(l.line); err != nil && !errors.Is(err, nmea.ErrMissingChecksum) {
		return 0, false
	}
	// the level field is a single digit ending the sentence body
	if end := l.offset + 1; end < len(l.line) {
		switch l.line[end] {
		case nmea.ChecksumDelimiter, '\r', '\n':
		default:
			return 0, false
		}
	}
	level := int(l.line[l.offset]) - '0'
	if level < 0 || level >= len(LampCodes) {
		return 0, false
	}
	return level, true
}
