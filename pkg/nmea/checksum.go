// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingChecksum is returned when a sentence carries no '*' delimiter
	ErrMissingChecksum = errors.New("sentence has no checksum")
	// ErrChecksumMismatch is returned when the transmitted checksum disagrees with the data
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

const hexDigits = "0123456789ABCDEF"

// Checksum is the running XOR over the bytes between the start character and '*'.
// A start character resets the sum and '*' freezes it until the next start.
type Checksum struct {
	sum    byte
	active bool
}

// Update feeds one byte
func (c *Checksum) Update(b byte) {
	switch b {
	case StartSentence, StartEncapsulated:
		c.sum = 0
		c.active = true
	case ChecksumDelimiter:
		c.active = false
	default:
		if c.active {
			c.sum ^= b
		}
	}
}

// Sum returns the checksum accumulated since the last start character
func (c *Checksum) Sum() byte {
	return c.sum
}

// Reset clears the running sum
func (c *Checksum) Reset() {
	c.sum = 0
	c.active = false
}

// Compute returns the checksum of a sentence body. The leading '$' or '!' is optional.
func Compute(body []byte) byte {
	var c Checksum
	c.active = true
	for _, b := range body {
		c.Update(b)
	}
	return c.Sum()
}

// AppendChecksum appends body, "*HH" and CRLF to dst
func AppendChecksum(dst, body []byte) []byte {
	sum := Compute(body)
	dst = append(dst, body...)
	return append(dst, ChecksumDelimiter, hexDigits[sum>>4], hexDigits[sum&0x0F], '\r', '\n')
}

// Verify checks the checksum of a complete sentence. Trailing CR/LF is ignored.
func Verify(sentence []byte) error {
	end := len(sentence)
	for end > 0 && (sentence[end-1] == '\n' || sentence[end-1] == '\r') {
		end--
	}
	line := sentence[:end]

	star := -1
	for i := len(line) - 1; i >= 0; i-- {
		if line[i] == ChecksumDelimiter {
			star = i
			break
		}
	}
	if star < 0 || star+3 != len(line) {
		return ErrMissingChecksum
	}

	want, ok := parseHexByte(line[star+1], line[star+2])
	if !ok {
		return fmt.Errorf("%w: invalid hex %q", ErrChecksumMismatch, line[star+1:])
	}
	got := Compute(line[:star])
	if got != want {
		return fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksumMismatch, want, got)
	}
	return nil
}

func parseHexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexValue(hi)
	l, ok2 := hexValue(lo)
	return h<<4 | l, ok1 && ok2
}

func hexValue(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}
