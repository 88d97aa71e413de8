// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"fmt"
	"strconv"
	"strings"
)

// Builder assembles a sentence body ("$TTFFF,f1,f2") without the checksum suffix
type Builder struct {
	buf []byte
}

// NewBuilder starts a sentence for the given talker and formatter.
// VDM and VDO are encapsulated and start with '!'.
func NewBuilder(talker, format string) *Builder {
	start := StartSentence
	if format == "VDM" || format == "VDO" {
		start = StartEncapsulated
	}
	buf := make([]byte, 0, MaxSentenceLength)
	buf = append(buf, start)
	buf = append(buf, talker...)
	buf = append(buf, format...)
	return &Builder{buf: buf}
}

// Field appends a text field
func (b *Builder) Field(s string) *Builder {
	b.buf = append(b.buf, FieldDelimiter)
	b.buf = append(b.buf, s...)
	return b
}

// Empty appends an empty field
func (b *Builder) Empty() *Builder {
	b.buf = append(b.buf, FieldDelimiter)
	return b
}

// Float appends a fixed precision decimal field
func (b *Builder) Float(v float64, decimals int) *Builder {
	b.buf = append(b.buf, FieldDelimiter)
	b.buf = strconv.AppendFloat(b.buf, v, 'f', decimals, 64)
	return b
}

// Int appends a zero padded integer field
func (b *Builder) Int(v, width int) *Builder {
	b.buf = append(b.buf, FieldDelimiter)
	s := strconv.Itoa(v)
	for i := len(s); i < width; i++ {
		b.buf = append(b.buf, '0')
	}
	b.buf = append(b.buf, s...)
	return b
}

// Bytes returns the body built so far
func (b *Builder) Bytes() []byte {
	return b.buf
}

// DPT builds a depth sentence, depth and offset in metres
// DBT builds a depth below transducer sentence, in feet, metres and fathoms
func DBT(talker string, feet float64) []byte {
	return NewBuilder(talker, FormatDBT).
		Float(feet, 1).Field("f").
		Float(feet*MetersPerFoot, 1).Field("M").
		Float(feet/FeetPerFathom, 1).Field("F").
		Bytes()
}

func DPT(talker string, depth, offset float64) []byte {
	return NewBuilder(talker, FormatDPT).Float(depth, 1).Float(offset, 1).Bytes()
}

// VHW builds a water speed and heading sentence with headings left empty
func VHW(talker string, knots float64) []byte {
	return NewBuilder(talker, FormatVHW).
		Empty().Field("T").
		Empty().Field("M").
		Float(knots, 2).Field("N").
		Float(knots*KPHPerKnot, 2).Field("K").
		Bytes()
}

// MTW builds a water temperature sentence in degrees Celsius
func MTW(talker string, celsius float64) []byte {
	return NewBuilder(talker, FormatMTW).Float(celsius, 1).Field("C").Bytes()
}

// TXT builds a single part text sentence
func TXT(talker, message string) ([]byte, error) {
	if strings.ContainsAny(message, ",*$!\r\n") {
		return nil, fmt.Errorf("text %q contains reserved characters", message)
	}
	return NewBuilder(talker, FormatTXT).Int(1, 2).Int(1, 2).Int(1, 2).Field(message).Bytes(), nil
}

// Prefix returns the sentence address field including the start character,
// e.g. "$GPRMC" for "$GPRMC,123519,A,...".
func Prefix(sentence string) string {
	if i := strings.IndexAny(sentence, ",*\r\n"); i >= 0 {
		return sentence[:i]
	}
	return sentence
}

// SplitPrefix extracts talker and formatter from a prefix. Proprietary
// sentences ("$P...") and malformed prefixes report ok=false.
func SplitPrefix(prefix string) (talker, format string, ok bool) {
	if len(prefix) != 6 {
		return "", "", false
	}
	if prefix[0] != StartSentence && prefix[0] != StartEncapsulated {
		return "", "", false
	}
	if prefix[1] == 'P' {
		return "", "", false
	}
	return prefix[1:3], prefix[3:6], true
}
