// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Seaport - Marine Sensor Bus Ingest
//
// Classifies the NMEA 0183 and SeaTalk1 devices attached to serial ports and
// normalizes their traffic to one NMEA 0183 stream.

package main

import (
	"os"

	"github.com/Thermoquad/seaport/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
