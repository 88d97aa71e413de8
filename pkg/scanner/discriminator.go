// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"sort"
	"strings"
)

// Discriminator maps a fingerprint to the port type that produced it
type Discriminator interface {
	Match(fingerprint []string) (PortType, bool)
}

// DiscriminatorFunc adapts a function to Discriminator
type DiscriminatorFunc func(fingerprint []string) (PortType, bool)

func (f DiscriminatorFunc) Match(fingerprint []string) (PortType, bool) {
	return f(fingerprint)
}

// PrefixRule resolves fingerprints containing a prefix starting with Prefix
type PrefixRule struct {
	Prefix string
	Type   PortType
}

// PrefixDiscriminator resolves a fingerprint when every matching rule
// agrees on the port type
type PrefixDiscriminator struct {
	Rules []PrefixRule
}

// DefaultRules identify SeaTalk by the ST talker the decoder emits and AIS
// receivers, which run at 38400
var DefaultRules = []PrefixRule{
	{Prefix: "$ST", Type: SeaTalk},
	{Prefix: "!AI", Type: NMEAHighSpeed},
}

// DefaultDiscriminator returns a discriminator with DefaultRules
func DefaultDiscriminator() *PrefixDiscriminator {
	return &PrefixDiscriminator{Rules: DefaultRules}
}

// NewPrefixDiscriminator builds rules from a prefix to type map
func NewPrefixDiscriminator(rules map[string]PortType) *PrefixDiscriminator {
	d := &PrefixDiscriminator{}
	for prefix, t := range rules {
		d.Rules = append(d.Rules, PrefixRule{Prefix: prefix, Type: t})
	}
	sort.Slice(d.Rules, func(i, j int) bool { return d.Rules[i].Prefix < d.Rules[j].Prefix })
	return d
}

func (d *PrefixDiscriminator) Match(fingerprint []string) (PortType, bool) {
	resolved := Unknown
	for _, prefix := range fingerprint {
		for _, rule := range d.Rules {
			if !strings.HasPrefix(prefix, rule.Prefix) {
				continue
			}
			if resolved != Unknown && resolved != rule.Type {
				return Unknown, false
			}
			resolved = rule.Type
		}
	}
	return resolved, resolved != Unknown
}
