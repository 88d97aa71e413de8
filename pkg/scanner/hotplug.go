// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Lister enumerates the serial ports present on the system
type Lister interface {
	List() ([]string, error)
}

// ListerFunc adapts a function to Lister
type ListerFunc func() ([]string, error)

func (f ListerFunc) List() ([]string, error) { return f() }

// DefaultHotplugPeriod is how often the port list is polled
const DefaultHotplugPeriod = 2 * time.Second

// Hotplug keeps a PortSet in step with the ports a Lister reports
type Hotplug struct {
	lister Lister
	ports  *PortSet
	logger *zap.SugaredLogger

	Period time.Duration
	Clock  clockwork.Clock
	// Exclude filters names out before they reach the set
	Exclude func(name string) bool
	// OnDetach is called for every port that disappears
	OnDetach func(name string)
}

// NewHotplug creates a monitor feeding ports
func NewHotplug(lister Lister, ports *PortSet, logger *zap.SugaredLogger) *Hotplug {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hotplug{
		lister: lister,
		ports:  ports,
		logger: logger,
		Period: DefaultHotplugPeriod,
		Clock:  clockwork.NewRealClock(),
	}
}

// Poll lists the ports once and updates the set
func (h *Hotplug) Poll() error {
	names, err := h.lister.List()
	if err != nil {
		return err
	}
	if h.Exclude != nil {
		kept := names[:0:0]
		for _, n := range names {
			if !h.Exclude(n) {
				kept = append(kept, n)
			}
		}
		names = kept
	}
	added, removed := h.ports.Replace(names)
	for _, n := range added {
		h.logger.Infow("port attached", "port", n)
	}
	for _, n := range removed {
		h.logger.Infow("port detached", "port", n)
		if h.OnDetach != nil {
			h.OnDetach(n)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. List failures are logged and retried.
func (h *Hotplug) Run(ctx context.Context) error {
	if err := h.Poll(); err != nil {
		h.logger.Warnw("port enumeration failed", "error", err)
	}
	ticker := h.Clock.NewTicker(h.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := h.Poll(); err != nil {
				h.logger.Warnw("port enumeration failed", "error", err)
			}
		}
	}
}
