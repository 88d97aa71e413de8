// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Thermoquad/seaport/pkg/nmea"
)

// paritySpy records parity switches and writes, failing on request
type paritySpy struct {
	ops []string

	failMark      bool
	failSpaceOnce bool
	failSpace     bool
	failCommand   bool
	failPayload   bool
}

var errSpy = errors.New("spy failure")

func (p *paritySpy) SetParity(parity Parity) error {
	if parity == ParityMark && p.failMark {
		return errSpy
	}
	if parity == ParitySpace {
		if p.failSpace {
			return errSpy
		}
		if p.failSpaceOnce {
			p.failSpaceOnce = false
			return errSpy
		}
	}
	p.ops = append(p.ops, "parity "+parity.String())
	return nil
}

func (p *paritySpy) Write(b []byte) (int, error) {
	if (len(b) == 1 && p.failCommand) || (len(b) > 1 && p.failPayload) {
		return 0, errSpy
	}
	p.ops = append(p.ops, "write "+hexDump(b))
	return len(b), nil
}

func TestWriteLamp_Sequence(t *testing.T) {
	for level, code := range LampCodes {
		spy := &paritySpy{}
		if err := WriteLamp(spy, level); err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		expected := []string{
			"parity " + ParityMark.String(),
			"write 30",
			"parity " + ParitySpace.String(),
			fmt.Sprintf("write 00 %02X", code),
		}
		if got := strings.Join(spy.ops, "|"); got != strings.Join(expected, "|") {
			t.Errorf("level %d: expected %v, got %v", level, expected, spy.ops)
		}
	}
}

func TestWriteLamp_InvalidLevel(t *testing.T) {
	for _, level := range []int{-1, 4, 9} {
		spy := &paritySpy{}
		if err := WriteLamp(spy, level); !errors.Is(err, ErrLampLevel) {
			t.Errorf("level %d: expected ErrLampLevel, got %v", level, err)
		}
		if len(spy.ops) != 0 {
			t.Errorf("level %d: port touched: %v", level, spy.ops)
		}
	}
}

func TestWriteLamp_Failures(t *testing.T) {
	tests := []struct {
		name          string
		spy           *paritySpy
		step          int
		misconfigured bool
	}{
		{"mark parity", &paritySpy{failMark: true}, StepMarkParity, false},
		{"command write, restored", &paritySpy{failCommand: true}, StepCommand, false},
		{"command write, stuck", &paritySpy{failCommand: true, failSpace: true}, StepCommand, true},
		{"space parity, retry works", &paritySpy{failSpaceOnce: true}, StepSpaceParity, false},
		{"space parity, stuck", &paritySpy{failSpace: true}, StepSpaceParity, true},
		{"payload write", &paritySpy{failPayload: true}, StepPayload, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WriteLamp(tt.spy, 1)
			var le *LampError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LampError, got %v", err)
			}
			if le.Step != tt.step {
				t.Errorf("expected step %d, got %d", tt.step, le.Step)
			}
			if le.Misconfigured() != tt.misconfigured {
				t.Errorf("expected misconfigured=%v: %v", tt.misconfigured, le)
			}
			if !errors.Is(err, errSpy) {
				t.Error("cause not wrapped")
			}
		})
	}
}

func lampSentence(prefix string, level int) string {
	return checksummed(fmt.Sprintf("P%s,ST,LAMP,%d", prefix, level))
}

func checksummed(body string) string {
	return "$" + body + fmt.Sprintf("*%02X\r\n", nmea.Compute([]byte(body)))
}

func TestLampMatcher(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		input    string
		expected []int
	}{
		{"with checksum", "SEA", lampSentence("SEA", 2), []int{2}},
		{"without checksum", "SEA", "$PSEA,ST,LAMP,3\r\n", []int{3}},
		{"custom prefix", "XYZ", lampSentence("XYZ", 1), []int{1}},
		{"other prefix ignored", "SEA", lampSentence("XYZ", 1), nil},
		{"bad checksum", "SEA", "$PSEA,ST,LAMP,2*00\r\n", nil},
		{"level out of range", "SEA", lampSentence("SEA", 7), nil},
		{"two digit level", "SEA", checksummed("PSEA,ST,LAMP,12"), nil},
		{"trailing garbage", "SEA", checksummed("PSEA,ST,LAMP,3xyz"), nil},
		{"extra field", "SEA", checksummed("PSEA,ST,LAMP,2,1"), nil},
		{"two digit level without checksum", "SEA", "$PSEA,ST,LAMP,12\r\n", nil},
		{"mixed stream", "SEA",
			"$GPGGA,1,2*00\r\n" + lampSentence("SEA", 0) + "$STMTW,12.0,C*1A\r\n" + lampSentence("SEA", 3),
			[]int{0, 3}},
		{"restart mid sentence", "SEA", "$PSEA,ST,LA" + lampSentence("SEA", 1), []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLampMatcher(tt.prefix).Feed([]byte(tt.input))
			if fmt.Sprint(got) != fmt.Sprint(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLampMatcher_SplitWrites(t *testing.T) {
	m := NewLampMatcher(DefaultPrefix)
	input := []byte(lampSentence(DefaultPrefix, 2))
	var got []int
	for _, b := range input {
		got = append(got, m.Feed([]byte{b})...)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("expected [2], got %v", got)
	}
}

func TestLampRequest(t *testing.T) {
	for level := range LampCodes {
		got, err := LampRequest(DefaultPrefix, level)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if string(got) != lampSentence(DefaultPrefix, level) {
			t.Errorf("level %d: got %q, want %q", level, got, lampSentence(DefaultPrefix, level))
		}
		if levels := NewLampMatcher(DefaultPrefix).Feed(got); len(levels) != 1 || levels[0] != level {
			t.Errorf("level %d: matcher saw %v", level, levels)
		}
	}
	if _, err := LampRequest(DefaultPrefix, 4); !errors.Is(err, ErrLampLevel) {
		t.Errorf("expected ErrLampLevel, got %v", err)
	}
}
