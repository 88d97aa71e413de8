// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/seaport/pkg/channel"
	"github.com/Thermoquad/seaport/pkg/scanner"
)

var sniffDuration time.Duration

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Fingerprint the NMEA UDP multicast group",
	Long: `Listen to NMEA 0183 datagrams for a bounded time and print the sentence
prefixes seen, the same fingerprint a serial scan collects.

The address defaults to the 224.0.0.3:10110 multicast group; use --udp to
listen elsewhere, e.g. --udp :10110 for broadcast or unicast senders.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().DurationVarP(&sniffDuration, "duration", "d", scanner.DefaultFingerprintDelay, "How long to listen")
}

func runSniff(cmd *cobra.Command, args []string) error {
	addr := udpAddr
	if addr == "" {
		addr = channel.DefaultNMEAGroup
	}

	conn, err := channel.OpenUDP(addr)
	if err != nil {
		return err
	}

	fmt.Printf("Seaport - NMEA Network Sniffer\n")
	fmt.Printf("Listening on %s for %s\n\n", addr, sniffDuration)

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, sniffDuration)
	defer cancelTimeout()

	s := scanner.NewScanner(scanner.NMEA, nil)
	err = s.Run(ctx, conn)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	fingerprint := s.Fingerprint().Snapshot()
	counters := s.Counters()
	if len(fingerprint) == 0 {
		fmt.Println("No NMEA traffic seen")
		return nil
	}

	fmt.Printf("%s: %s\n", scanner.NameFor(fingerprint), addr)
	for _, prefix := range fingerprint {
		fmt.Printf("  %s\n", prefix)
	}
	fmt.Printf("\n%d sentences, %d bytes (%d not part of a sentence)\n",
		counters.Sentences, counters.BytesRead, counters.ErrorBytes)
	return nil
}
