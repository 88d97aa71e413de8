// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Fingerprint is the set of sentence prefixes seen on a port in one scan
// epoch. One scanner writes it while the scheduler reads.
type Fingerprint struct {
	prefixes cmap.ConcurrentMap[string, struct{}]
}

// NewFingerprint creates an empty fingerprint
func NewFingerprint() *Fingerprint {
	return &Fingerprint{prefixes: cmap.New[struct{}]()}
}

// Add inserts a prefix and reports whether it was new
func (f *Fingerprint) Add(prefix string) bool {
	return f.prefixes.SetIfAbsent(prefix, struct{}{})
}

func (f *Fingerprint) Contains(prefix string) bool {
	return f.prefixes.Has(prefix)
}

func (f *Fingerprint) Len() int {
	return f.prefixes.Count()
}

// Snapshot returns the prefixes sorted
func (f *Fingerprint) Snapshot() []string {
	out := f.prefixes.Keys()
	sort.Strings(out)
	return out
}

func (f *Fingerprint) Reset() {
	f.prefixes.Clear()
}
