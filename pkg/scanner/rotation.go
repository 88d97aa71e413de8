// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

// Rotation cycles through candidate port types. It wraps around
// indefinitely, so a port that never answers keeps cycling.
type Rotation struct {
	types []PortType
	next  int
	laps  int
}

// NewRotation creates a rotation over types, which must not be empty
func NewRotation(types []PortType) *Rotation {
	return &Rotation{types: append([]PortType(nil), types...)}
}

// Next returns the next candidate
func (r *Rotation) Next() PortType {
	t := r.types[r.next]
	r.next++
	if r.next == len(r.types) {
		r.next = 0
		r.laps++
	}
	return t
}

// Laps returns how many times every candidate has been tried
func (r *Rotation) Laps() int {
	return r.laps
}

// Len returns the number of candidates
func (r *Rotation) Len() int {
	return len(r.types)
}
