// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"strconv"

	"github.com/Thermoquad/seaport/pkg/nmea"
)

// category names a port by what its sentences carry
type category struct {
	name    string
	talkers []string
	formats []string
}

// categories in priority order
var categories = []category{
	{name: "AIS", talkers: []string{"AI"}, formats: []string{"VDM", "VDO"}},
	{name: "GPS", talkers: []string{"GP"}, formats: []string{"RMC"}},
	{name: "SOUNDER", formats: []string{"DBK", "DBS", "DBT", "DPT"}},
	{name: "LOG", formats: []string{"VHW"}},
	{name: "WIND", formats: []string{"VWR", "MWD", "MWV"}},
	{name: "COMPASS", formats: []string{"THS", "HDG", "HDM", "HDT"}},
}

// DefaultName is used when no category fits
const DefaultName = "NMEA"

// NameFor picks a configuration name for a fingerprint. Proprietary
// sentences are ignored.
func NameFor(fingerprint []string) string {
	for _, c := range categories {
		for _, prefix := range fingerprint {
			talker, format, ok := nmea.SplitPrefix(prefix)
			if !ok {
				continue
			}
			if contains(c.talkers, talker) || contains(c.formats, format) {
				return c.name
			}
		}
	}
	return DefaultName
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Namer hands out unique names, suffixing repeats with _2, _3 and so on
type Namer struct {
	seen map[string]int
}

func NewNamer() *Namer {
	return &Namer{seen: make(map[string]int)}
}

// Name returns a unique name for r
func (n *Namer) Name(r ScanResult) string {
	base := NameFor(r.Fingerprint)
	n.seen[base]++
	if c := n.seen[base]; c > 1 {
		return base + "_" + strconv.Itoa(c)
	}
	return base
}
