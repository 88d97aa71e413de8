// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/config"
	"github.com/Thermoquad/seaport/pkg/logging"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Other sources
	inputFile string
	udpAddr   string

	cfg    *config.Config
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "seaport",
	Short: "Marine sensor bus ingest",
	Long: `Seaport - Finds NMEA 0183 and SeaTalk1 devices on serial ports and
normalizes their traffic to one NMEA 0183 stream.

Ports are classified by opening them with each candidate framing in turn and
fingerprinting the sentences that arrive. SeaTalk datagrams are decoded to
NMEA sentences with the ST talker.

Sources for single-port commands:
  Serial:    --port /dev/ttyUSB0
  WebSocket: --url ws://host/path [--username user]
  File:      --file capture.bin
  UDP:       --udp 224.0.0.3:10110

For WebSocket authentication, the password is read from the SEAPORT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "0.3.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "Read a raw capture file instead of a port")
	rootCmd.PersistentFlags().StringVar(&udpAddr, "udp", "", "Read NMEA datagrams from a UDP address")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
