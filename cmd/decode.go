// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/seaport/pkg/nmea"
	"github.com/Thermoquad/seaport/pkg/seatalk"
)

var (
	decodeVerbose       bool
	decodeStatsInterval time.Duration
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode SeaTalk1 datagrams to NMEA 0183",
	Long: `Decode a SeaTalk1 bus to NMEA 0183 sentences on stdout.

The bus is read from a serial port, a raw capture file or a websocket bridge.
Datagrams that do not map to a sentence are counted but not printed.
Statistics are written to stderr on exit and every --stats-interval.

With --verbose each sentence is followed by its parsed values.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVarP(&decodeVerbose, "verbose", "v", false, "Print parsed sentence values")
	decodeCmd.Flags().DurationVar(&decodeStatsInterval, "stats-interval", 0, "Print statistics periodically (0 disables)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	src, framing, info, err := openRawSeaTalk(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintf(os.Stderr, "Seaport - SeaTalk Decoder\n")
	fmt.Fprintf(os.Stderr, "Connection: %s\n", info)
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to exit\n\n")

	decoder := seatalk.NewDecoder(framing, logger.Named("seatalk"))
	if cfg.SeaTalk.BufferSize > 0 {
		decoder.BufferSize = cfg.SeaTalk.BufferSize
	}

	var out io.Writer = os.Stdout
	if decodeVerbose {
		out = &verboseWriter{w: os.Stdout}
	}

	if decodeStatsInterval > 0 {
		go func() {
			ticker := time.NewTicker(decodeStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fmt.Fprintln(os.Stderr)
					fmt.Fprint(os.Stderr, decoder.Statistics().String())
				}
			}
		}()
	}

	err = decoder.Run(ctx, src, nmea.NewWriter(out))

	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, decoder.Statistics().String())

	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// verboseWriter echoes each sentence followed by its parsed values
type verboseWriter struct {
	w io.Writer
}

func (v *verboseWriter) Write(p []byte) (int, error) {
	if _, err := v.w.Write(p); err != nil {
		return 0, err
	}
	line := string(bytes.TrimRight(p, "\r\n"))
	if _, err := fmt.Fprintf(v.w, "  %s\n", describeSentence(line)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// describeSentence parses an NMEA line into a short human-readable summary
func describeSentence(line string) string {
	s, err := gonmea.Parse(line)
	if err != nil {
		return fmt.Sprintf("(unparsed: %v)", err)
	}
	switch m := s.(type) {
	case gonmea.DBT:
		return fmt.Sprintf("depth %.1f ft (%.1f m, %.1f fathoms)", m.DepthFeet, m.DepthMeters, m.DepthFathoms)
	case gonmea.DPT:
		return fmt.Sprintf("depth %.1f m (offset %.1f m)", m.Depth, m.Offset)
	case gonmea.VHW:
		return fmt.Sprintf("speed through water %.2f kn", m.SpeedThroughWaterKnots)
	case gonmea.MTW:
		unit := "C"
		if !m.CelsiusValid {
			unit = "?"
		}
		return fmt.Sprintf("water temperature %.1f %s", m.Temperature, unit)
	case gonmea.TXT:
		return fmt.Sprintf("text: %s", m.Message)
	}
	return fmt.Sprintf("%s from talker %s", s.DataType(), s.TalkerID())
}
