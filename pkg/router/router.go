// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package router

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/seaport/pkg/output"
	"github.com/Thermoquad/seaport/pkg/scanner"
)

type entry struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Router owns one session per classified port
type Router struct {
	ctx    context.Context
	dialer Dialer
	sink   output.Sink
	logger *zap.SugaredLogger

	// Backoff applies to sessions started after it is set
	Backoff Backoff

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

// New creates a router whose sessions live until ctx is cancelled
func New(ctx context.Context, dialer Dialer, sink output.Sink, logger *zap.SugaredLogger) *Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Router{
		ctx:      ctx,
		dialer:   dialer,
		sink:     sink,
		logger:   logger,
		Backoff:  DefaultBackoff,
		sessions: make(map[string]*entry),
	}
}

// Consume starts a session for result, replacing any session on the same
// port. It does not block, so it can be the scheduler's result consumer.
func (r *Router) Consume(result scanner.ScanResult) {
	if result.PortType == scanner.Unknown && result.Probed == scanner.Unknown {
		return
	}
	s := NewSession(result, r.dialer, r.sink, r.Backoff, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[result.Port]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(r.ctx)
	e := &entry{session: s, cancel: cancel, done: make(chan struct{})}
	r.sessions[result.Port] = e

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(e.done)
		_ = s.Run(ctx)
	}()
	r.logger.Infow("session started", "port", s.Port, "type", s.Type.String())
}

// Remove stops the session on port
func (r *Router) Remove(port string) {
	r.mu.Lock()
	e, ok := r.sessions[port]
	delete(r.sessions, port)
	r.mu.Unlock()
	if ok {
		e.cancel()
		<-e.done
		r.logger.Infow("session stopped", "port", port)
	}
}

// Sessions returns the live sessions sorted by port
func (r *Router) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// Command writes p to every connected SeaTalk session and returns how many
// accepted it
func (r *Router) Command(p []byte) int {
	n := 0
	for _, s := range r.Sessions() {
		if s.Type != scanner.SeaTalk {
			continue
		}
		if _, err := s.Write(p); err != nil {
			r.logger.Debugw("command not delivered", "port", s.Port, "error", err)
			continue
		}
		n++
	}
	return n
}

// Close stops every session and waits for them to exit
func (r *Router) Close() {
	r.mu.Lock()
	for port, e := range r.sessions {
		e.cancel()
		delete(r.sessions, port)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
