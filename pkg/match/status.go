// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package match provides incremental byte-at-a-time pattern matching used to
// find sentence and frame boundaries in serial streams.
package match

// Status is the classification of the byte just consumed
type Status int

const (
	Ok        Status = iota // accepted, several candidates still alive
	WillMatch               // accepted, exactly one candidate alive
	Match                   // a candidate just completed
	Error                   // no candidate can be extended
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case WillMatch:
		return "WillMatch"
	case Match:
		return "Match"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Matcher is implemented by every incremental matcher in this module
type Matcher interface {
	Match(b byte) Status
	Reset()
}

// All feeds data through m one byte at a time and returns the last status.
func All(m Matcher, data []byte) Status {
	s := Error
	for _, b := range data {
		s = m.Match(b)
	}
	return s
}
