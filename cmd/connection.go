// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/seaport/pkg/channel"
	"github.com/Thermoquad/seaport/pkg/scanner"
	"github.com/Thermoquad/seaport/pkg/seatalk"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("SEAPORT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// isTerminal reports whether stdout is an interactive terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newOpener() *channel.Opener {
	return channel.NewOpener(cfg.Framing(), cfg.SeaTalk.ProprietaryPrefix, logger.Named("channel"))
}

// openWebSocket dials --url, prompting for a password when --username is set
func openWebSocket(ctx context.Context) (*channel.WebSocketConn, error) {
	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return nil, err
		}
	}
	return channel.OpenWebSocket(ctx, wsURL, channel.WebSocketOptions{
		Username:      wsUsername,
		Password:      password,
		SkipSSLVerify: wsNoSSLVerify,
	})
}

// openRawSeaTalk opens undecoded bus bytes from --url, --file or --port. The
// returned framing is the one the bytes were captured with.
func openRawSeaTalk(ctx context.Context) (io.ReadCloser, seatalk.Framing, string, error) {
	framing := cfg.Framing()
	switch {
	case wsURL != "":
		conn, err := openWebSocket(ctx)
		if err != nil {
			return nil, framing, "", err
		}
		return conn, framing, fmt.Sprintf("WebSocket: %s", wsURL), nil

	case inputFile != "":
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, framing, "", err
		}
		return f, framing, fmt.Sprintf("File: %s", inputFile), nil

	case portName != "":
		baud := scanner.SeaTalk.Params().Baud
		p, framing, err := newOpener().OpenSeaTalk(portName, baud)
		if err != nil {
			return nil, framing, "", fmt.Errorf("failed to open serial port %s: %w", portName, err)
		}
		return p, framing, fmt.Sprintf("Serial: %s @ %d baud, %s framing", portName, baud, framing), nil
	}

	return nil, framing, "", fmt.Errorf("one of --port, --url or --file must be specified")
}
