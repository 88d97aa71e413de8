// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Default scan timing
const (
	DefaultMonitorPeriod    = 5 * time.Second
	DefaultCloseDelay       = 1 * time.Second
	DefaultFingerprintDelay = 10 * time.Second
)

var (
	ErrInvalidDelays = errors.New("invalid scan delays")
	ErrNilConsumer   = errors.New("nil scan result consumer")
	ErrNilOpener     = errors.New("nil port opener")
	ErrNoPortTypes   = errors.New("no port types to scan")
	ErrStarted       = errors.New("scheduler already started")
)

// Config is the scheduler timing and candidate set
type Config struct {
	// MonitorPeriod is the tick period and the silence allowed before a rescan
	MonitorPeriod time.Duration
	// CloseDelay is the pause before a rescanned port is reopened
	CloseDelay time.Duration
	// FingerprintDelay is the longest a port is fingerprinted before the
	// result is published
	FingerprintDelay time.Duration
	// CancelWait bounds the wait for a cancelled scanner to release its port.
	// Zero means CloseDelay.
	CancelWait time.Duration

	DontScan  []string
	PortTypes []PortType

	// IdleExit stops the scheduler once every port is classified or excluded
	IdleExit bool
}

// DefaultConfig returns the default timing over every port type
func DefaultConfig() Config {
	return Config{
		MonitorPeriod:    DefaultMonitorPeriod,
		CloseDelay:       DefaultCloseDelay,
		FingerprintDelay: DefaultFingerprintDelay,
		PortTypes:        append([]PortType(nil), PortTypes...),
	}
}

// CheckDelays requires CloseDelay < MonitorPeriod < FingerprintDelay
func CheckDelays(cfg Config) error {
	if cfg.CloseDelay < 0 || cfg.CloseDelay >= cfg.MonitorPeriod || cfg.MonitorPeriod >= cfg.FingerprintDelay {
		return fmt.Errorf("%w: need close delay (%s) < monitor period (%s) < fingerprint delay (%s)",
			ErrInvalidDelays, cfg.CloseDelay, cfg.MonitorPeriod, cfg.FingerprintDelay)
	}
	return nil
}

// probe is one scanner attempt on one port
type probe struct {
	port    string
	scanner *Scanner
	cancel  context.CancelFunc
	done    chan struct{}
	err     error        // valid once done is closed
	begun   atomic.Int64 // clock time the channel opened, unix nanoseconds
	// settling is set once the port is released and the close delay timer armed
	settling atomic.Bool
}

func (p *probe) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *probe) startedAt() (time.Time, bool) {
	ns := p.begun.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Scheduler runs one scanner per free port and publishes a ScanResult once
// per port epoch. Per-port tables are only touched by the tick goroutine.
type Scheduler struct {
	cfg    Config
	opener Opener
	ports  *PortSet
	logger *zap.SugaredLogger

	// Discriminator resolves fingerprints; nil disables resolution
	Discriminator Discriminator
	// Clock is the time source for every scheduling decision
	Clock clockwork.Clock

	consumer func(ScanResult)
	onTick   func([]PortStatus)
	dontScan map[string]bool

	probes    map[string]*probe
	rotations map[string]*Rotation
	resolved  map[string]ScanResult
	attempts  map[string]int
	lastErr   map[string]error

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	probeWG sync.WaitGroup
	done    chan struct{}
}

// NewScheduler creates a scheduler over ports
func NewScheduler(cfg Config, opener Opener, ports *PortSet, logger *zap.SugaredLogger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.CancelWait <= 0 {
		cfg.CancelWait = cfg.CloseDelay
	}
	if cfg.CancelWait <= 0 {
		cfg.CancelWait = DefaultCloseDelay
	}
	dontScan := make(map[string]bool, len(cfg.DontScan))
	for _, name := range cfg.DontScan {
		dontScan[name] = true
	}
	return &Scheduler{
		cfg:           cfg,
		opener:        opener,
		ports:         ports,
		logger:        logger,
		Discriminator: DefaultDiscriminator(),
		Clock:         clockwork.NewRealClock(),
		dontScan:      dontScan,
		probes:        make(map[string]*probe),
		rotations:     make(map[string]*Rotation),
		resolved:      make(map[string]ScanResult),
		attempts:      make(map[string]int),
		lastErr:       make(map[string]error),
		done:          make(chan struct{}),
	}
}

// OnTick registers an observer called with every port's status after each
// tick. It must be set before Start.
func (s *Scheduler) OnTick(fn func([]PortStatus)) {
	s.onTick = fn
}

// Start validates the configuration and starts the monitor loop. consumer
// is called on the loop goroutine and should not block.
func (s *Scheduler) Start(ctx context.Context, consumer func(ScanResult)) error {
	if err := s.init(ctx, consumer); err != nil {
		return err
	}
	go s.loop()
	return nil
}

func (s *Scheduler) init(ctx context.Context, consumer func(ScanResult)) error {
	if err := CheckDelays(s.cfg); err != nil {
		return err
	}
	if consumer == nil {
		return ErrNilConsumer
	}
	if s.opener == nil {
		return ErrNilOpener
	}
	if len(s.cfg.PortTypes) == 0 {
		return ErrNoPortTypes
	}
	for _, t := range s.cfg.PortTypes {
		if !t.Valid() {
			return fmt.Errorf("%w: invalid port type %d", ErrNoPortTypes, int(t))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return ErrStarted
	}
	s.consumer = consumer
	s.ctx, s.cancel = context.WithCancel(ctx)
	return nil
}

// Stop cancels every scanner and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.done
}

// Done is closed once the loop has exited and every scanner has stopped
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := s.Clock.NewTicker(s.cfg.MonitorPeriod)
	defer ticker.Stop()
	defer s.shutdown()

	s.tick()
	for {
		if s.cfg.IdleExit && s.idle() {
			s.logger.Infow("every port classified")
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.tick()
		}
	}
}

func (s *Scheduler) shutdown() {
	for _, p := range s.probes {
		p.cancel()
	}
	s.cancel()
	s.probeWG.Wait()
}

func (s *Scheduler) idle() bool {
	for _, name := range s.ports.Snapshot() {
		if _, ok := s.resolved[name]; !ok && !s.dontScan[name] {
			return false
		}
	}
	return true
}

func (s *Scheduler) tick() {
	now := s.Clock.Now()
	live := s.ports.Snapshot()
	present := make(map[string]bool, len(live))
	for _, name := range live {
		present[name] = true
	}

	for name, p := range s.probes {
		if !present[name] {
			p.cancel()
			delete(s.probes, name)
			s.logger.Infow("port gone, scan cancelled", "port", name)
		}
	}
	for name := range s.rotations {
		if !present[name] {
			s.forget(name)
		}
	}
	for name := range s.resolved {
		if !present[name] {
			s.forget(name)
		}
	}

	for _, name := range live {
		if s.dontScan[name] {
			continue
		}
		if _, done := s.resolved[name]; done {
			continue
		}
		p, ok := s.probes[name]
		if !ok {
			s.start(name, 0, nil)
			continue
		}
		s.check(p, now)
	}

	if s.onTick != nil {
		s.onTick(s.status(live, now))
	}
}

func (s *Scheduler) forget(name string) {
	delete(s.probes, name)
	delete(s.rotations, name)
	delete(s.resolved, name)
	delete(s.attempts, name)
	delete(s.lastErr, name)
}

func (s *Scheduler) check(p *probe, now time.Time) {
	if p.finished() {
		if t, ok := p.scanner.Resolved(); ok && p.err == nil {
			s.finalize(p, t, now)
			return
		}
		if errors.Is(p.err, ErrWrongPortType) {
			s.logger.Debugw("rotating port type", "port", p.port, "reason", p.err)
		} else {
			s.logger.Warnw("scan failed", "port", p.port, "type", p.scanner.PortType(), "error", p.err)
		}
		s.lastErr[p.port] = p.err
		s.rescan(p)
		return
	}

	begun, ok := p.startedAt()
	if !ok {
		return
	}
	elapsed := now.Sub(begun)
	fp := p.scanner.Fingerprint()

	switch {
	case fp.Len() > 0 && elapsed >= s.cfg.FingerprintDelay:
		t := Unknown
		if s.Discriminator != nil {
			if r, ok := s.Discriminator.Match(fp.Snapshot()); ok {
				t = r
			}
		}
		s.finalize(p, t, now)
	case fp.Len() == 0 && elapsed >= s.cfg.MonitorPeriod:
		s.logger.Infow("port silent, rescanning", "port", p.port, "type", p.scanner.PortType(), "elapsed", elapsed)
		s.rescan(p)
	}
}

func (s *Scheduler) finalize(p *probe, t PortType, now time.Time) {
	p.cancel()
	result := ScanResult{
		Port:        p.port,
		PortType:    t,
		Probed:      p.scanner.PortType(),
		Fingerprint: p.scanner.Fingerprint().Snapshot(),
		Time:        now,
	}
	s.logger.Infow("port classified", "port", p.port, "type", t, "probed", result.Probed, "fingerprint", result.Fingerprint)
	s.consumer(result)

	s.resolved[p.port] = result
	delete(s.probes, p.port)
	delete(s.rotations, p.port)
}

// rescan cancels p and starts the next port type after CloseDelay
func (s *Scheduler) rescan(p *probe) {
	p.cancel()
	s.start(p.port, s.cfg.CloseDelay, p)
}

func (s *Scheduler) start(name string, delay time.Duration, prev *probe) {
	rot, ok := s.rotations[name]
	if !ok {
		rot = NewRotation(s.cfg.PortTypes)
		s.rotations[name] = rot
	}
	ctx, cancel := context.WithCancel(s.ctx)
	p := &probe{
		port:    name,
		scanner: NewScanner(rot.Next(), s.Discriminator),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	var prevDone <-chan struct{}
	if prev != nil {
		prevDone = prev.done
	}

	s.probes[name] = p
	s.attempts[name]++
	s.logger.Debugw("scan scheduled", "port", name, "type", p.scanner.PortType(), "delay", delay)

	s.probeWG.Add(1)
	go func() {
		defer s.probeWG.Done()
		defer close(p.done)
		p.err = s.runProbe(ctx, p, prevDone, delay)
	}()
}

func (s *Scheduler) runProbe(ctx context.Context, p *probe, prevDone <-chan struct{}, delay time.Duration) error {
	if prevDone != nil {
		timer := s.Clock.NewTimer(s.cfg.CancelWait)
		select {
		case <-prevDone:
		case <-timer.Chan():
			s.logger.Warnw("previous scanner did not release port", "port", p.port, "wait", s.cfg.CancelWait)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		timer.Stop()
	}
	if delay > 0 {
		timer := s.Clock.NewTimer(delay)
		p.settling.Store(true)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	ch, err := s.opener.Open(ctx, p.port, p.scanner.PortType())
	if err != nil {
		return fmt.Errorf("open %s as %s: %w", p.port, p.scanner.PortType(), err)
	}
	p.begun.Store(s.Clock.Now().UnixNano())
	return p.scanner.Run(ctx, ch)
}

func (s *Scheduler) status(live []string, now time.Time) []PortStatus {
	out := make([]PortStatus, 0, len(live))
	for _, name := range live {
		st := PortStatus{
			Port:      name,
			Attempts:  s.attempts[name],
			LastError: s.lastErr[name],
			Excluded:  s.dontScan[name],
		}
		if r, ok := s.resolved[name]; ok {
			st.State = Matched
			st.Probed = r.Probed
			st.Fingerprint = r.Fingerprint
		} else if p, ok := s.probes[name]; ok {
			st.Probed = p.scanner.PortType()
			st.Fingerprint = p.scanner.Fingerprint().Snapshot()
			if begun, ok := p.startedAt(); ok {
				st.State = Probing
				st.Elapsed = now.Sub(begun)
			} else if st.LastError != nil {
				st.State = Failed
			}
		}
		out = append(out, st)
	}
	return out
}

// Results returns the results published for ports still present. It may
// only be called once Done is closed.
func (s *Scheduler) Results() []ScanResult {
	out := make([]ScanResult, 0, len(s.resolved))
	for _, name := range s.ports.Snapshot() {
		if r, ok := s.resolved[name]; ok {
			out = append(out, r)
		}
	}
	return out
}
