// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/scanner"
	"github.com/Thermoquad/seaport/pkg/seatalk"
)

// Opener opens serial ports by port type. SeaTalk ports come back decoded
// to NMEA.
type Opener struct {
	Framing seatalk.Framing
	Prefix  string
	logger  *zap.SugaredLogger
}

// NewOpener creates an opener. prefix is the proprietary prefix for lamp
// requests written to SeaTalk ports.
func NewOpener(framing seatalk.Framing, prefix string, logger *zap.SugaredLogger) *Opener {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Opener{Framing: framing, Prefix: prefix, logger: logger}
}

// Open implements scanner.Opener
func (o *Opener) Open(ctx context.Context, port string, t scanner.PortType) (scanner.Channel, error) {
	return o.OpenConn(ctx, port, t)
}

// OpenConn opens port as t for reading and writing
func (o *Opener) OpenConn(ctx context.Context, port string, t scanner.PortType) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := t.Params()
	switch t {
	case scanner.NMEA, scanner.NMEAHighSpeed:
		sp, err := OpenSerial(port, params.Baud)
		if err != nil {
			return nil, err
		}
		return sp, nil
	case scanner.SeaTalk:
		raw, framing, err := o.OpenSeaTalk(port, params.Baud)
		if err != nil {
			return nil, err
		}
		logger := o.logger.Named("seatalk").With("port", port)
		return seatalk.NewChannel(raw, framing, o.Prefix, logger), nil
	}
	return nil, fmt.Errorf("unsupported port type %s", t)
}

// OpenSeaTalk opens the raw bus port. Marked framing falls back to unmarked
// where the platform cannot mark parity errors.
func (o *Opener) OpenSeaTalk(port string, baud int) (seatalk.Port, seatalk.Framing, error) {
	if o.Framing == seatalk.FramingMarked {
		p, err := OpenMarked(port, baud)
		if err == nil {
			return p, seatalk.FramingMarked, nil
		}
		if !errors.Is(err, ErrParityMarkUnsupported) {
			return nil, o.Framing, err
		}
		o.logger.Warnw("parity marking unsupported, using unmarked framing", "port", port)
	}
	p, err := OpenSerialSpace(port, baud)
	if err != nil {
		return nil, seatalk.FramingUnmarked, err
	}
	return p, seatalk.FramingUnmarked, nil
}
