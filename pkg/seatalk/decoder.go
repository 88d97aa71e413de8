// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"bytes"
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/match"
	"github.com/Thermoquad/seaport/pkg/nmea"
	"github.com/Thermoquad/seaport/pkg/ring"
)

// Decoder turns a raw bus stream into NMEA sentences. The speed and
// temperature latches live as long as the Decoder; use one per session.
type Decoder struct {
	matcher *Matcher
	logger  *zap.SugaredLogger
	stats   *Statistics

	betterSpeed       bool
	betterTemperature bool

	// BufferSize is the ring buffer capacity used by Run
	BufferSize int
	// AfterFrame runs on the Run goroutine after every complete datagram,
	// while the bus is known to be idle
	AfterFrame func()
}

// NewDecoder creates a decoder
func NewDecoder(framing Framing, logger *zap.SugaredLogger) *Decoder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Decoder{
		matcher:    NewMatcher(framing),
		logger:     logger,
		stats:      NewStatistics(),
		BufferSize: ring.DefaultSize,
	}
}

// Framing returns the framing the decoder was built for
func (d *Decoder) Framing() Framing {
	return d.matcher.framing
}

// Statistics returns the live counters
func (d *Decoder) Statistics() *Statistics {
	return d.stats
}

// BetterSpeed reports whether the precise speed datagram has been seen
func (d *Decoder) BetterSpeed() bool {
	return d.betterSpeed
}

// BetterTemperature reports whether the fine temperature datagram has been seen
func (d *Decoder) BetterTemperature() bool {
	return d.betterTemperature
}

// Idle reports whether no datagram is in progress
func (d *Decoder) Idle() bool {
	return d.matcher.Idle()
}

// Reset drops any partial datagram. Latches are kept.
func (d *Decoder) Reset() {
	d.matcher.Reset()
}

// DecodeByte processes one raw byte.
// Returns a validated frame, or nil if the frame is incomplete.
// Returns a *FrameError when bytes were dropped.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.matcher.Match(b) {
	case match.Match:
		frame := d.matcher.Frame()
		if err := d.validate(frame); err != nil {
			d.stats.Update(nil, err)
			return nil, err
		}
		d.stats.Update(frame, nil)
		return frame, nil
	case match.Error:
		err := d.matcher.Err()
		d.stats.Update(nil, err)
		return nil, err
	}
	return nil, nil
}

func (d *Decoder) validate(f *Frame) *FrameError {
	op := lookup(f.Command())
	if op == nil {
		return nil
	}
	if f.Attribute() != op.attribute {
		if d.matcher.framing == FramingMarked {
			// treated as an unrecognized opcode
			return nil
		}
		return &FrameError{Kind: ErrAttribute, Command: f.Command(), Raw: f.Bytes()}
	}
	if len(op.pattern) > 0 && !bytes.HasPrefix(f.Payload(), op.pattern) {
		return &FrameError{Kind: ErrPattern, Command: f.Command(), Raw: f.Bytes()}
	}
	return nil
}

// Normalize converts a frame to a sentence body. ok is false when the frame
// produces no output.
func (d *Decoder) Normalize(f *Frame) (body []byte, ok bool) {
	op := lookup(f.Command())
	if op == nil || op.attribute != f.Attribute() {
		d.stats.addUnrecognized()
		d.logger.Debugw("unrecognized datagram", "raw", hexDump(f.Bytes()))
		return nil, false
	}
	if op.normalize == nil {
		return nil, false
	}
	body = op.normalize(d, f)
	if body == nil {
		return nil, false
	}
	d.stats.addSentence()
	return body, true
}

// Run decodes r into w until r fails or ctx is cancelled. Cancelling closes r
// when it implements io.Closer. End of stream returns nil.
func (d *Decoder) Run(ctx context.Context, r io.Reader, w *nmea.Writer) error {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	buf := ring.New(d.BufferSize)
	unmarked := d.matcher.framing == FramingUnmarked

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := buf.Fill(r)

		for buf.HasRemaining() {
			b := buf.Get(d.Idle())
			frame, ferr := d.DecodeByte(b)
			if ferr != nil {
				d.logger.Debugw("frame dropped", "error", ferr)
				if unmarked && buf.Marked().Len() > 1 {
					// retry alignment one byte after the failed candidate start
					buf.Rewind()
					buf.Get(true)
					d.Reset()
				} else if !unmarked {
					buf.Discard()
				}
				continue
			}
			if frame == nil {
				continue
			}
			if body, ok := d.Normalize(frame); ok {
				if werr := w.WriteSentence(body); werr != nil {
					return werr
				}
			}
			if d.AfterFrame != nil {
				d.AfterFrame()
			}
		}

		if buf.IsFull() {
			buf.Discard()
			d.Reset()
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
