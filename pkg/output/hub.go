// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientQueue = 256

// Hub broadcasts sentences to websocket clients. Text messages received from
// clients are passed to OnMessage, which serve uses for lamp commands.
type Hub struct {
	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
	logger    *zap.SugaredLogger
	dropped   uint64
	wg        sync.WaitGroup // client reader and writer goroutines

	// OnMessage receives client messages. Set before serving.
	OnMessage func(data []byte)
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with no clients
func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many sentences were skipped for slow clients
func (h *Hub) Dropped() uint64 {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.dropped
}

// ServeHTTP upgrades the request and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientQueue),
	}

	h.clientsMu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Infow("client connected", "remote", r.RemoteAddr, "clients", n)

	h.wg.Add(2)

	// Writer goroutine
	go func() {
		defer h.wg.Done()
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine
	go func() {
		defer h.wg.Done()
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, client)
			n := len(h.clients)
			close(client.send)
			h.clientsMu.Unlock()
			h.logger.Infow("client disconnected", "remote", r.RemoteAddr, "clients", n)
		}()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.TextMessage && h.OnMessage != nil {
				h.OnMessage(data)
			}
		}
	}()
}

// Send queues sentence for every client. Clients whose queue is full miss it.
func (h *Hub) Send(sentence []byte) error {
	msg := append([]byte(nil), sentence...)

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Client too slow, skip
			h.dropped++
		}
	}
	return nil
}

// Close disconnects every client and waits for their goroutines to exit
func (h *Hub) Close() error {
	h.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		conns = append(conns, client.conn)
	}
	h.clientsMu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	h.wg.Wait()
	return nil
}

// Serve listens on addr with the hub at "/" and "/ws" until ctx is cancelled
func (h *Hub) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.serve(ctx, ln)
}

func (h *Hub) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/", h)
	mux.Handle("/ws", h)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		_ = h.Close()
	}()

	h.logger.Infow("websocket output listening", "address", ln.Addr().String())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Serve returns as soon as Shutdown starts; hijacked client connections
	// outlive it until Close
	<-stopped
	return nil
}
