// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package seatalk

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/nmea"
)

// Port is a raw bus connection
type Port interface {
	io.ReadWriteCloser
	SetParity(p Parity) error
}

// Channel presents a raw bus port as an NMEA stream. Reads return normalized
// sentences; writes are scanned for lamp requests, which are sent to the bus
// right after the next datagram.
type Channel struct {
	port     *oncePort
	decoder  *Decoder
	logger   *zap.SugaredLogger
	reader   *io.PipeReader
	cancel   context.CancelFunc
	done     chan struct{}
	requests chan int

	mu   sync.Mutex
	lamp *LampMatcher
	err  error
}

// NewChannel starts decoding port. prefix is the proprietary sentence prefix
// for lamp requests.
func NewChannel(port Port, framing Framing, prefix string, logger *zap.SugaredLogger) *Channel {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()

	c := &Channel{
		port:     &oncePort{Port: port},
		decoder:  NewDecoder(framing, logger),
		logger:   logger,
		reader:   pr,
		cancel:   cancel,
		done:     make(chan struct{}),
		requests: make(chan int, 1),
		lamp:     NewLampMatcher(prefix),
	}
	c.decoder.AfterFrame = c.flushLamp

	go func() {
		defer close(c.done)
		err := c.decoder.Run(ctx, c.port, nmea.NewWriter(pw))
		if err == nil || errors.Is(err, context.Canceled) {
			err = io.EOF
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		pw.CloseWithError(err)
	}()
	return c
}

// Read returns normalized sentence bytes
func (c *Channel) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

// Write scans p for lamp requests. Other sentences are accepted and ignored.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	levels := c.lamp.Feed(p)
	c.mu.Unlock()

	for _, level := range levels {
		c.queue(level)
	}
	return len(p), nil
}

// RequestLamp queues a lamp level directly
func (c *Channel) RequestLamp(level int) error {
	if level < 0 || level >= len(LampCodes) {
		return ErrLampLevel
	}
	c.queue(level)
	return nil
}

// queue keeps only the newest pending request
func (c *Channel) queue(level int) {
	for {
		select {
		case c.requests <- level:
			return
		default:
		}
		select {
		case <-c.requests:
		default:
		}
	}
}

func (c *Channel) flushLamp() {
	select {
	case level := <-c.requests:
		err := WriteLamp(c.port, level)
		if err == nil {
			c.logger.Infow("lamp intensity set", "level", level)
			return
		}
		var le *LampError
		if errors.As(err, &le) && le.Misconfigured() {
			c.logger.Errorw("lamp command left port misconfigured", "step", le.Step, "error", le.Err)
			return
		}
		c.logger.Warnw("lamp command failed", "error", err)
	default:
	}
}

// Decoder returns the session decoder
func (c *Channel) Decoder() *Decoder {
	return c.decoder
}

// Err returns the error that ended decoding, if any
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close stops decoding and closes the port
func (c *Channel) Close() error {
	c.cancel()
	err := c.port.Close()
	c.reader.Close()
	<-c.done
	return err
}

// oncePort closes the underlying port at most once
type oncePort struct {
	Port
	once sync.Once
	err  error
}

func (o *oncePort) Close() error {
	o.once.Do(func() { o.err = o.Port.Close() })
	return o.err
}
