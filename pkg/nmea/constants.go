// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nmea implements the NMEA 0183 framing used on the normalized output
// stream: checksum, sentence boundary matching and sentence construction.
package nmea

// Framing characters
const (
	StartSentence      byte = '$'
	StartEncapsulated  byte = '!'
	ChecksumDelimiter  byte = '*'
	FieldDelimiter     byte = ','
	MaxSentenceLength       = 82 // including start character and CRLF
	DefaultTalker           = "ST"
)

// Sentence formatters emitted by the SeaTalk normalizer
const (
	FormatDBT = "DBT"
	FormatDPT = "DPT"
	FormatVHW = "VHW"
	FormatMTW = "MTW"
	FormatTXT = "TXT"
)

// Unit conversion
const (
	MetersPerFoot = 0.3048
	FeetPerFathom = 6
	KPHPerKnot    = 1.852
)
