// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// PortType is the framing a serial port is opened with
type PortType int

// Port types. Unknown is the zero value and means not classified.
const (
	Unknown PortType = iota
	NMEA
	NMEAHighSpeed
	SeaTalk
)

// Params are the serial parameters of a port type
type Params struct {
	Name        string
	Baud        int
	Parity      string // "none" or "space"
	Marked      bool   // parity errors are reported inline (FF 00 escapes)
	Description string
}

var portTypeParams = map[PortType]Params{
	NMEA: {
		Name:        "nmea",
		Baud:        4800,
		Parity:      "none",
		Description: "NMEA 0183, 4800 8N1",
	},
	NMEAHighSpeed: {
		Name:        "nmea-hs",
		Baud:        38400,
		Parity:      "none",
		Description: "NMEA 0183 high speed, 38400 8N1",
	},
	SeaTalk: {
		Name:        "seatalk",
		Baud:        4800,
		Parity:      "space",
		Marked:      true,
		Description: "SeaTalk1, 4800 parity-marked, decoded to NMEA",
	},
}

// PortTypes lists every port type in the default rotation order
var PortTypes = []PortType{NMEA, NMEAHighSpeed, SeaTalk}

// Params returns the serial parameters for t
func (t PortType) Params() Params {
	return portTypeParams[t]
}

// Valid reports whether t is a concrete port type
func (t PortType) Valid() bool {
	_, ok := portTypeParams[t]
	return ok
}

func (t PortType) String() string {
	if p, ok := portTypeParams[t]; ok {
		return p.Name
	}
	return "unknown"
}

// ParsePortType parses a port type name. Underscores and case are ignored.
func ParsePortType(s string) (PortType, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch name {
	case "nmea", "nmea-4800":
		return NMEA, nil
	case "nmea-hs", "nmea-highspeed", "nmea-high-speed", "nmea-38400":
		return NMEAHighSpeed, nil
	case "seatalk", "seatalk1":
		return SeaTalk, nil
	}
	return Unknown, fmt.Errorf("unknown port type %q", s)
}

// UnmarshalYAML accepts a port type name
func (t *PortType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePortType(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*t = parsed
	return nil
}

// MarshalYAML writes the port type name
func (t PortType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}
