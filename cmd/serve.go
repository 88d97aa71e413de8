// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/channel"
	"github.com/Thermoquad/seaport/pkg/output"
	"github.com/Thermoquad/seaport/pkg/router"
	"github.com/Thermoquad/seaport/pkg/scanner"
)

var (
	serveUDP       string
	serveWebSocket string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scan ports and broadcast their normalized NMEA stream",
	Long: `Classify every serial port, then keep a session open on each one and send
the combined NMEA 0183 stream to UDP and websocket clients.

Ports are watched for hotplug: a new adapter is scanned when it appears and
its session is dropped when it disappears. Sessions reconnect with
exponential backoff after read errors.

Websocket clients may send "$P<prefix>,ST,LAMP,<0-3>" sentences to set the
lighting of every SeaTalk instrument.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveUDP, "output-udp", "", "UDP destination (default from config, \"-\" disables)")
	serveCmd.Flags().StringVar(&serveWebSocket, "listen", "", "Websocket listen address, e.g. :8080")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	udpDest := cfg.Output.UDP
	if serveUDP != "" {
		udpDest = serveUDP
	}
	if udpDest == "-" {
		udpDest = ""
	}
	listen := cfg.Output.WebSocket
	if serveWebSocket != "" {
		listen = serveWebSocket
	}

	fanout := output.NewFanOut(logger.Named("output"))
	defer fanout.Close()
	if udpDest != "" {
		sink, err := output.NewUDPSink(udpDest)
		if err != nil {
			return err
		}
		fanout.Add(sink)
		logger.Infow("udp output", "destination", udpDest)
	}

	opener := newOpener()
	rt := router.New(ctx, opener, fanout, logger.Named("router"))
	defer rt.Close()

	errs := make(chan error, 1)
	if listen != "" {
		hub := output.NewHub(logger.Named("websocket"))
		hub.OnMessage = func(data []byte) {
			if n := rt.Command(data); n == 0 {
				logger.Debugw("client message not delivered to any SeaTalk port")
			}
		}
		fanout.Add(hub)
		go func() { errs <- hub.Serve(ctx, listen) }()
	}
	if fanout.Len() == 0 {
		return fmt.Errorf("no output configured; set output.udp, output.websocket or --listen")
	}

	ports := scanner.NewPortSet()
	if portName != "" {
		ports.Add(portName)
	} else {
		hotplug := scanner.NewHotplug(channel.SystemLister{USBOnly: cfg.Scan.USBOnly}, ports, logger.Named("hotplug"))
		hotplug.Period = cfg.Scan.HotplugPeriod.Duration
		hotplug.OnDetach = rt.Remove
		go func() { _ = hotplug.Run(ctx) }()
	}

	sched := scanner.NewScheduler(cfg.SchedulerConfig(), opener, ports, logger.Named("scanner"))
	sched.Discriminator = cfg.Discriminator()
	if err := sched.Start(ctx, rt.Consume); err != nil {
		return err
	}

	logger.Infow("serving", "ports", ports.Snapshot(), "websocket", listen)

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			cancel()
			<-sched.Done()
			return fmt.Errorf("websocket output: %w", err)
		}
	}
	<-sched.Done()
	logSessions(logger, rt)
	return nil
}

func logSessions(log *zap.SugaredLogger, rt *router.Router) {
	for _, s := range rt.Sessions() {
		log.Infow("session summary",
			"port", s.Port,
			"type", s.Type.String(),
			"sentences", s.Sentences(),
			"invalid", s.Invalid(),
			"connects", s.Connects(),
		)
	}
}
