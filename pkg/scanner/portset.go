// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// PortSet is the set of free ports, written by the hotplug monitor and read
// by the scheduler tick
type PortSet struct {
	ports cmap.ConcurrentMap[string, struct{}]
}

// NewPortSet creates a set holding names
func NewPortSet(names ...string) *PortSet {
	s := &PortSet{ports: cmap.New[struct{}]()}
	for _, n := range names {
		s.ports.Set(n, struct{}{})
	}
	return s
}

func (s *PortSet) Add(name string) {
	s.ports.Set(name, struct{}{})
}

func (s *PortSet) Remove(name string) {
	s.ports.Remove(name)
}

// Replace sets the contents to names and returns what changed. Only one
// writer may call it at a time.
func (s *PortSet) Replace(names []string) (added, removed []string) {
	next := make(map[string]struct{}, len(names))
	for _, n := range names {
		next[n] = struct{}{}
		if s.ports.SetIfAbsent(n, struct{}{}) {
			added = append(added, n)
		}
	}
	for _, n := range s.ports.Keys() {
		if _, ok := next[n]; !ok {
			s.ports.Remove(n)
			removed = append(removed, n)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func (s *PortSet) Contains(name string) bool {
	return s.ports.Has(name)
}

func (s *PortSet) Len() int {
	return s.ports.Count()
}

// Snapshot returns the port names sorted
func (s *PortSet) Snapshot() []string {
	out := s.ports.Keys()
	sort.Strings(out)
	return out
}
