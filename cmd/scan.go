// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/seaport/pkg/channel"
	"github.com/Thermoquad/seaport/pkg/scanner"
)

var (
	scanTUI     bool
	scanWrite   string
	scanTimeout time.Duration
	scanUSBOnly bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify the serial ports on this system",
	Long: `Open every serial port with each candidate framing in turn and classify it
by the sentences that arrive:

  nmea      NMEA 0183 at 4800 baud
  nmea-hs   NMEA 0183 at 38400 baud (AIS receivers)
  seatalk   SeaTalk1 at 4800 baud, decoded to NMEA

A port is published once its fingerprint resolves to a type, or after the
fingerprint delay when sentences arrive but do not settle a type. Silent
ports are retried with the next framing every monitor period.

The scan ends when every port is classified, on --timeout or on Ctrl+C.
Use --write to save the result as a YAML port configuration.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanTUI, "tui", true, "Use terminal UI when stdout is a terminal")
	scanCmd.Flags().StringVarP(&scanWrite, "write", "w", "", "Write the port configuration to this YAML file")
	scanCmd.Flags().DurationVarP(&scanTimeout, "timeout", "t", 0, "Give up after this long (0 waits for every port)")
	scanCmd.Flags().BoolVar(&scanUSBOnly, "usb-only", false, "Only scan USB serial adapters")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	if scanTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, scanTimeout)
		defer cancelTimeout()
	}

	useTUI := scanTUI && isTerminal()
	log := logger
	if useTUI {
		// log lines would tear the alternate screen
		log = zap.NewNop().Sugar()
	}

	ports := scanner.NewPortSet()
	if portName != "" {
		ports.Add(portName)
	} else {
		hotplug := scanner.NewHotplug(channel.SystemLister{USBOnly: scanUSBOnly || cfg.Scan.USBOnly}, ports, log.Named("hotplug"))
		hotplug.Period = cfg.Scan.HotplugPeriod.Duration
		if err := hotplug.Poll(); err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}
		go func() { _ = hotplug.Run(ctx) }()
	}
	if ports.Len() == 0 {
		return fmt.Errorf("no serial ports found")
	}

	schedCfg := cfg.SchedulerConfig()
	schedCfg.IdleExit = true
	sched := scanner.NewScheduler(schedCfg, newOpener(), ports, log.Named("scanner"))
	sched.Discriminator = cfg.Discriminator()

	if useTUI {
		if err := runScanTUI(ctx, sched, ports); err != nil {
			return err
		}
	} else {
		fmt.Printf("Seaport - Port Scan\n")
		fmt.Printf("Ports: %v\n", ports.Snapshot())
		fmt.Printf("Press Ctrl+C to stop\n\n")

		err := sched.Start(ctx, func(r scanner.ScanResult) {
			fmt.Printf("[%s] %s\n", r.Time.Format("15:04:05.000"), r)
		})
		if err != nil {
			return err
		}
		<-sched.Done()
	}

	results := sched.Results()
	printScanSummary(results, ports.Snapshot())

	if scanWrite != "" {
		if err := writePortConfig(scanWrite, results); err != nil {
			return err
		}
		fmt.Printf("\nPort configuration written to %s\n", scanWrite)
	}
	return nil
}

func runScanTUI(ctx context.Context, sched *scanner.Scheduler, ports *scanner.PortSet) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newScanModel(ports.Snapshot()), tea.WithAltScreen())

	sched.OnTick(func(status []scanner.PortStatus) {
		p.Send(scanStatusMsg(status))
	})
	err := sched.Start(ctx, func(r scanner.ScanResult) {
		p.Send(scanResultMsg(r))
	})
	if err != nil {
		return err
	}
	go func() {
		<-sched.Done()
		p.Send(scanDoneMsg{})
	}()

	_, err = p.Run()
	// quitting the TUI stops the scan
	cancel()
	<-sched.Done()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func printScanSummary(results []scanner.ScanResult, ports []string) {
	fmt.Printf("\n%d of %d ports classified\n", len(results), len(ports))
	namer := scanner.NewNamer()
	for _, r := range results {
		fmt.Printf("  %-10s %s\n", namer.Name(r), r)
	}
}

// portConfig is the file written by scan --write
type portConfig struct {
	Ports []portConfigEntry `yaml:"ports"`
}

type portConfigEntry struct {
	Name        string           `yaml:"name"`
	Port        string           `yaml:"port"`
	Type        scanner.PortType `yaml:"type"`
	Baud        int              `yaml:"baud"`
	Fingerprint []string         `yaml:"fingerprint,flow"`
}

func buildPortConfig(results []scanner.ScanResult) portConfig {
	namer := scanner.NewNamer()
	out := portConfig{Ports: make([]portConfigEntry, 0, len(results))}
	for _, r := range results {
		t := r.PortType
		if t == scanner.Unknown {
			t = r.Probed
		}
		out.Ports = append(out.Ports, portConfigEntry{
			Name:        namer.Name(r),
			Port:        r.Port,
			Type:        t,
			Baud:        t.Params().Baud,
			Fingerprint: r.Fingerprint,
		})
	}
	return out
}

func writePortConfig(path string, results []scanner.ScanResult) error {
	data, err := yaml.Marshal(buildPortConfig(results))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
