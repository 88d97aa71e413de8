// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"fmt"
	"strings"
)

// hexDump renders bytes as "00 02 1A"
func hexDump(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// FormatFrame formats a datagram for human-readable display
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	return fmt.Sprintf("[%s] %-26s %s\n", timestamp, OpcodeName(f.Command()), hexDump(f.Bytes()))
}
