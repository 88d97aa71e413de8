// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/seaport/pkg/scanner"
	"github.com/Thermoquad/seaport/pkg/seatalk"
)

var lampCmd = &cobra.Command{
	Use:   "lamp <level>",
	Short: "Set SeaTalk instrument lighting (0-3)",
	Long: `Send the lamp intensity datagram to a SeaTalk1 bus.

With --port the datagram is written directly, switching the port to MARK
parity for the command byte. With --url the request is sent as a proprietary
sentence to a running "seaport serve", which forwards it to every SeaTalk
port it has classified.`,
	Args: cobra.ExactArgs(1),
	RunE: runLamp,
}

func init() {
	rootCmd.AddCommand(lampCmd)
}

func runLamp(cmd *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid lamp level %q: %w", args[0], err)
	}
	if level < 0 || level >= len(seatalk.LampCodes) {
		return fmt.Errorf("%w: %d", seatalk.ErrLampLevel, level)
	}

	switch {
	case wsURL != "":
		ctx, cancel := signalContext()
		defer cancel()

		conn, err := openWebSocket(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		request, err := seatalk.LampRequest(cfg.SeaTalk.ProprietaryPrefix, level)
		if err != nil {
			return err
		}
		if _, err := conn.Write(request); err != nil {
			return fmt.Errorf("failed to send lamp request: %w", err)
		}
		fmt.Printf("Lamp request L%d sent to %s\n", level, wsURL)
		return nil

	case portName != "":
		p, _, err := newOpener().OpenSeaTalk(portName, scanner.SeaTalk.Params().Baud)
		if err != nil {
			return fmt.Errorf("failed to open serial port %s: %w", portName, err)
		}
		defer p.Close()

		if err := seatalk.WriteLamp(p, level); err != nil {
			var lampErr *seatalk.LampError
			if errors.As(err, &lampErr) && lampErr.Misconfigured() {
				logger.Errorw("port may be left in MARK parity; reopen it before use", "port", portName)
			}
			return err
		}
		fmt.Printf("Lamp set to L%d on %s\n", level, portName)
		return nil
	}

	return fmt.Errorf("either --port or --url must be specified")
}
