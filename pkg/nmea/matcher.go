// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"github.com/Thermoquad/seaport/pkg/match"
)

// Matcher states
const (
	statePrefix = iota
	stateData
	stateChecksum1
	stateChecksum2
	stateCR
	stateLF
)

// DefaultPrefixes are the start characters of every NMEA 0183 sentence
var DefaultPrefixes = []string{"$", "!"}

// Matcher finds complete, checksum-valid sentences in a byte stream
type Matcher struct {
	prefix   *match.Wildcard[string]
	state    int
	length   int
	checksum Checksum
	matches  uint64
	errors   uint64

	// AllowMissingChecksum accepts "$...\r\n" lines without a '*HH' suffix
	AllowMissingChecksum bool
}

// NewMatcher creates a matcher for sentences starting with any of prefixes.
// Prefixes may use match wildcards; with none given the defaults apply.
func NewMatcher(prefixes ...string) *Matcher {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	patterns := make([]match.Pattern[string], len(prefixes))
	for i, p := range prefixes {
		patterns[i] = match.Pattern[string]{Expr: p, Value: p}
	}
	return &Matcher{prefix: match.MustCompile(patterns...)}
}

// Match consumes one byte. A start character inside a sentence abandons the
// candidate; callers may feed that byte again to begin the next one.
func (m *Matcher) Match(b byte) match.Status {
	switch m.state {
	case statePrefix:
		m.checksum.Update(b)
		m.length++
		switch s := m.prefix.Match(b); s {
		case match.Match:
			m.state = stateData
			return match.WillMatch
		case match.Error:
			return m.fail()
		default:
			return s
		}

	case stateData:
		if b == ChecksumDelimiter {
			m.checksum.Update(b)
			m.state = stateChecksum1
			return match.WillMatch
		}
		if b == '\r' && m.AllowMissingChecksum {
			m.state = stateLF
			return match.WillMatch
		}
		if b < 0x20 || b > 0x7E || b == StartSentence || b == StartEncapsulated {
			return m.fail()
		}
		m.length++
		if m.length > MaxSentenceLength-5 {
			return m.fail()
		}
		m.checksum.Update(b)
		return match.WillMatch

	case stateChecksum1:
		if v, ok := hexValue(b); !ok || v != m.checksum.Sum()>>4 {
			return m.fail()
		}
		m.state = stateChecksum2
		return match.WillMatch

	case stateChecksum2:
		if v, ok := hexValue(b); !ok || v != m.checksum.Sum()&0x0F {
			return m.fail()
		}
		m.state = stateCR
		return match.WillMatch

	case stateCR:
		if b != '\r' {
			return m.fail()
		}
		m.state = stateLF
		return match.WillMatch

	case stateLF:
		if b != '\n' {
			return m.fail()
		}
		m.matches++
		m.Reset()
		return match.Match
	}
	return m.fail()
}

// Reset abandons the current candidate
func (m *Matcher) Reset() {
	m.state = statePrefix
	m.length = 0
	m.checksum.Reset()
	m.prefix.Reset()
}

// Idle reports whether no candidate is in progress, so the next byte may
// start a sentence
func (m *Matcher) Idle() bool {
	return m.state == statePrefix && m.length == 0
}

// Matches returns the number of complete sentences seen
func (m *Matcher) Matches() uint64 {
	return m.matches
}

// Errors returns the number of abandoned candidates
func (m *Matcher) Errors() uint64 {
	return m.errors
}

// MatchAll feeds data one byte at a time and returns the final status
func (m *Matcher) MatchAll(data []byte) match.Status {
	return match.All(m, data)
}

func (m *Matcher) fail() match.Status {
	m.errors++
	m.Reset()
	return match.Error
}
