// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"fmt"
	"strings"
	"time"
)

// ScanResult is the classification of one port for one epoch. PortType is
// Unknown when the fingerprint did not settle a type.
type ScanResult struct {
	Port        string
	PortType    PortType
	Probed      PortType
	Fingerprint []string
	Time        time.Time
}

// Resolved reports whether the result carries a port type
func (r ScanResult) Resolved() bool {
	return r.PortType != Unknown
}

func (r ScanResult) String() string {
	t := r.PortType.String()
	if !r.Resolved() {
		t = "unresolved"
	}
	return fmt.Sprintf("%s: %s (probed %s) [%s]", r.Port, t, r.Probed, strings.Join(r.Fingerprint, " "))
}

// State is the scheduler's view of one port
type State int

const (
	Unstarted State = iota
	Probing
	Matched
	Failed
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Probing:
		return "probing"
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PortStatus is a per-port snapshot handed to tick observers
type PortStatus struct {
	Port        string
	State       State
	Probed      PortType
	Elapsed     time.Duration
	Fingerprint []string
	LastError   error
	Attempts    int
	Excluded    bool
}
