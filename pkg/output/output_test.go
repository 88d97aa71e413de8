// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sentence = "$IIDPT,3.4,0.0*47\r\n"

type recordingSink struct {
	mu     sync.Mutex
	got    []string
	fail   bool
	closed bool
}

func (r *recordingSink) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("sink down")
	}
	r.got = append(r.got, string(p))
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	if r.fail {
		return errors.New("sink down")
	}
	return nil
}

func TestFanOut_FailingSinkDoesNotStopOthers(t *testing.T) {
	bad := &recordingSink{fail: true}
	good := &recordingSink{}
	f := NewFanOut(zaptest.NewLogger(t).Sugar(), bad)
	f.Add(good)
	assert.Equal(t, 2, f.Len())

	require.NoError(t, f.Send([]byte(sentence)))
	assert.Equal(t, []string{sentence}, good.got)

	err := f.Close()
	assert.Error(t, err)
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
	assert.Equal(t, 0, f.Len())
}

func TestUDPSink(t *testing.T) {
	ln, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	sink, err := NewUDPSink(ln.LocalAddr().String())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Send([]byte(sentence)))

	require.NoError(t, ln.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 128)
	n, _, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, sentence, string(buf[:n]))
}

func TestUDPSink_InvalidAddress(t *testing.T) {
	_, err := NewUDPSink("nowhere")
	assert.Error(t, err)
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastAndCommands(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	commands := make(chan string, 1)
	hub.OnMessage = func(data []byte) { commands <- string(data) }

	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dialHub(t, srv)
	b := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Send([]byte(sentence)))
	for _, c := range []*websocket.Conn{a, b} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		messageType, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, messageType)
		assert.Equal(t, sentence, string(data))
	}

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("$PSEA,ST,LAMP,2\r\n")))
	select {
	case cmd := <-commands:
		assert.Equal(t, "$PSEA,ST,LAMP,2\r\n", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Zero(t, hub.Clients())
}

func TestHub_Serve(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}

	// every client goroutine has exited, so nothing logs after the test
	assert.Zero(t, hub.Clients())
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
