// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scanner classifies serial ports by the sentences they carry.
//
// A Scanner probes one port opened with one PortType and collects the
// sentence prefixes it sees into a Fingerprint. The Scheduler runs one
// Scanner per free port, rotates silent ports through the candidate port
// types and publishes a ScanResult once per port epoch.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/seaport/pkg/match"
	"github.com/Thermoquad/seaport/pkg/nmea"
	"github.com/Thermoquad/seaport/pkg/ring"
)

// ErrWrongPortType means the fingerprint resolved to a different port type
// than the one being probed
var ErrWrongPortType = errors.New("wrong port type")

// Channel is an open candidate port
type Channel = io.ReadCloser

// Opener opens port with the parameters of t
type Opener interface {
	Open(ctx context.Context, port string, t PortType) (Channel, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, port string, t PortType) (Channel, error)

func (f OpenerFunc) Open(ctx context.Context, port string, t PortType) (Channel, error) {
	return f(ctx, port, t)
}

// Counters describe the traffic a scanner has seen
type Counters struct {
	BytesRead    uint64
	MatchedBytes uint64
	ErrorBytes   uint64
	Sentences    uint64
	Elapsed      time.Duration
}

// Scanner probes one channel with one port type
type Scanner struct {
	portType    PortType
	fingerprint *Fingerprint
	disc        Discriminator

	// BufferSize is the ring buffer capacity used by Run
	BufferSize int

	mu       sync.Mutex
	resolved PortType
	started  time.Time
	stopped  time.Time

	bytesRead    atomic.Uint64
	matchedBytes atomic.Uint64
	errorBytes   atomic.Uint64
	sentences    atomic.Uint64
}

// NewScanner creates a scanner for t. disc may be nil.
func NewScanner(t PortType, disc Discriminator) *Scanner {
	return &Scanner{
		portType:    t,
		fingerprint: NewFingerprint(),
		disc:        disc,
		BufferSize:  ring.DefaultSize,
	}
}

// PortType returns the probed port type
func (s *Scanner) PortType() PortType {
	return s.portType
}

// Fingerprint returns the live fingerprint
func (s *Scanner) Fingerprint() *Fingerprint {
	return s.fingerprint
}

// Resolved returns the port type the discriminator settled on, if any
func (s *Scanner) Resolved() (PortType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved, s.resolved != Unknown
}

// Counters returns a snapshot of the traffic counters
func (s *Scanner) Counters() Counters {
	s.mu.Lock()
	var elapsed time.Duration
	switch {
	case s.started.IsZero():
	case s.stopped.IsZero():
		elapsed = time.Since(s.started)
	default:
		elapsed = s.stopped.Sub(s.started)
	}
	s.mu.Unlock()

	return Counters{
		BytesRead:    s.bytesRead.Load(),
		MatchedBytes: s.matchedBytes.Load(),
		ErrorBytes:   s.errorBytes.Load(),
		Sentences:    s.sentences.Load(),
		Elapsed:      elapsed,
	}
}

// Run reads ch until it fails, ctx is cancelled or the fingerprint resolves.
// ch is closed on return; cancelling ctx closes it to unblock a pending read.
// A resolution matching the probed type returns nil, a different one
// ErrWrongPortType.
func (s *Scanner) Run(ctx context.Context, ch Channel) error {
	closer := &onceCloser{c: ch}
	defer closer.Close()
	stop := context.AfterFunc(ctx, func() { closer.Close() })
	defer stop()

	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.stopped = time.Now()
		s.mu.Unlock()
	}()

	buf := ring.New(s.BufferSize)
	m := nmea.NewMatcher()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := buf.Fill(ch)
		s.bytesRead.Add(uint64(n))

		for buf.HasRemaining() {
			b := buf.Get(m.Idle())
			switch m.Match(b) {
			case match.Match:
				if done, rerr := s.observe(buf.Marked()); done {
					return rerr
				}
			case match.Error:
				failed := buf.Marked().Len()
				if (b == nmea.StartSentence || b == nmea.StartEncapsulated) && failed > 1 {
					// the start of the next sentence cut this one short
					buf.Unget()
					failed--
				}
				s.errorBytes.Add(uint64(failed))
			}
		}

		if buf.IsFull() {
			s.errorBytes.Add(uint64(buf.Marked().Len()))
			buf.Discard()
			m.Reset()
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// observe records a matched sentence; done reports that Run should return
func (s *Scanner) observe(sentence ring.View) (done bool, err error) {
	s.sentences.Add(1)
	s.matchedBytes.Add(uint64(sentence.Len()))

	end := sentence.IndexByte(nmea.FieldDelimiter)
	if end < 0 {
		end = sentence.IndexByte(nmea.ChecksumDelimiter)
	}
	if end < 0 {
		end = sentence.Len() - 2
	}
	if !s.fingerprint.Add(sentence.Slice(0, end).String()) || s.disc == nil {
		return false, nil
	}

	t, ok := s.disc.Match(s.fingerprint.Snapshot())
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	s.resolved = t
	s.mu.Unlock()

	if t == s.portType {
		return true, nil
	}
	return true, fmt.Errorf("%w: fingerprint resolves to %s, probing %s", ErrWrongPortType, t, s.portType)
}

// onceCloser closes the underlying channel at most once
type onceCloser struct {
	c    io.Closer
	once sync.Once
	err  error
}

func (o *onceCloser) Close() error {
	o.once.Do(func() { o.err = o.c.Close() })
	return o.err
}
