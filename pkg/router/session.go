// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package router keeps a session open on every classified port and pumps
// its sentences to the output fan-out.
package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/channel"
	"github.com/Thermoquad/seaport/pkg/match"
	"github.com/Thermoquad/seaport/pkg/nmea"
	"github.com/Thermoquad/seaport/pkg/output"
	"github.com/Thermoquad/seaport/pkg/ring"
	"github.com/Thermoquad/seaport/pkg/scanner"
)

// ErrNotConnected is returned when writing to a session between connections
var ErrNotConnected = errors.New("session not connected")

// Dialer opens a port with the framing of a port type
type Dialer interface {
	OpenConn(ctx context.Context, port string, t scanner.PortType) (channel.Conn, error)
}

// Backoff is the reconnect schedule. The delay starts at Initial and doubles
// up to Max; attempts past MaxAttempts keep retrying at Max.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff starts at 1s and doubles up to 60s
var DefaultBackoff = Backoff{Initial: time.Second, Max: 60 * time.Second, MaxAttempts: 10}

func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Session is the live connection to one classified port
type Session struct {
	Port string
	Type scanner.PortType

	dialer  Dialer
	sink    output.Sink
	logger  *zap.SugaredLogger
	backoff Backoff

	mu   sync.Mutex
	conn channel.Conn

	sentences atomic.Uint64
	invalid   atomic.Uint64
	connects  atomic.Uint64
}

// NewSession creates a session for result. Unresolved results are opened
// with the port type that produced the fingerprint.
func NewSession(result scanner.ScanResult, dialer Dialer, sink output.Sink, backoff Backoff, logger *zap.SugaredLogger) *Session {
	t := result.PortType
	if t == scanner.Unknown {
		t = result.Probed
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Session{
		Port:    result.Port,
		Type:    t,
		dialer:  dialer,
		sink:    sink,
		logger:  logger.With("port", result.Port, "type", t.String()),
		backoff: backoff,
	}
}

// Sentences returns the number of sentences forwarded
func (s *Session) Sentences() uint64 { return s.sentences.Load() }

// Invalid returns the number of sentence candidates abandoned, for a bad
// checksum or framing
func (s *Session) Invalid() uint64 { return s.invalid.Load() }

// Connects returns the number of successful opens
func (s *Session) Connects() uint64 { return s.connects.Load() }

// Connected reports whether a connection is open
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Write sends p to the port, e.g. a lamp request to a SeaTalk channel
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, ErrNotConnected
	}
	return s.conn.Write(p)
}

// Run connects and pumps until ctx is cancelled, reconnecting with backoff
func (s *Session) Run(ctx context.Context) error {
	delay := s.backoff.Initial
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.dialer.OpenConn(ctx, s.Port, s.Type)
		if err != nil {
			attempt++
			if attempt <= s.backoff.MaxAttempts {
				s.logger.Warnw("connect failed", "attempt", attempt, "max_attempts", s.backoff.MaxAttempts, "error", err, "retry_in", delay)
			} else {
				s.logger.Warnw("connect failed", "attempt", attempt, "error", err, "retry_in", delay)
			}
		} else {
			s.connects.Add(1)
			s.logger.Infow("connected", "attempt", attempt+1)
			attempt = 0
			n, err := s.pump(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warnw("connection lost", "sentences", n, "error", err, "retry_in", delay)
			if n > 0 {
				delay = s.backoff.Initial
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = s.backoff.next(delay)
	}
}

// pump forwards every checksum-valid sentence the matcher finds until the
// connection fails
func (s *Session) pump(ctx context.Context, conn channel.Conn) (uint64, error) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	buf := ring.New(ring.DefaultSize)
	m := nmea.NewMatcher()
	line := make([]byte, 0, nmea.MaxSentenceLength)
	var count uint64
	for {
		_, err := buf.Fill(conn)

		for buf.HasRemaining() {
			idle := m.Idle()
			b := buf.Get(idle)
			switch m.Match(b) {
			case match.Match:
				line = buf.Marked().AppendTo(line[:0])
				if serr := s.sink.Send(line); serr != nil {
					s.logger.Debugw("output failed", "error", serr)
				}
				count++
				s.sentences.Add(1)
			case match.Error:
				if idle {
					continue
				}
				s.invalid.Add(1)
				if b == nmea.StartSentence || b == nmea.StartEncapsulated {
					// the start of the next sentence cut this one short
					buf.Unget()
				}
			}
		}

		if buf.IsFull() {
			s.invalid.Add(1)
			buf.Discard()
			m.Reset()
		}

		if err != nil {
			return count, err
		}
	}
}
