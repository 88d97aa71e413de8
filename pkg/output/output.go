// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package output fans normalized NMEA sentences out to UDP and websocket
// clients.
package output

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Sink receives complete sentences, CRLF included
type Sink interface {
	Send(sentence []byte) error
	Close() error
}

// FanOut sends every sentence to all of its sinks. A failing sink is logged
// and does not stop the others.
type FanOut struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *zap.SugaredLogger
}

// NewFanOut creates a fan-out over sinks
func NewFanOut(logger *zap.SugaredLogger, sinks ...Sink) *FanOut {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FanOut{sinks: sinks, logger: logger}
}

// Add appends a sink
func (f *FanOut) Add(s Sink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Len returns the number of sinks
func (f *FanOut) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

func (f *FanOut) Send(sentence []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		if err := s.Send(sentence); err != nil {
			f.logger.Debugw("sink send failed", "error", err)
		}
	}
	return nil
}

// Close closes every sink
func (f *FanOut) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.sinks = nil
	return errors.Join(errs...)
}
