// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// floodServer sends count binary messages and then waits for the client to go away
func floodServer(t *testing.T, count int) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < count; i++ {
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte("OK\r\n")); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnection_CloseStopsBlockedPump(t *testing.T) {
	url := floodServer(t, 200)

	c, err := OpenWebSocketConnection(url, "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	w := c.(*WebSocketConnection)

	// nobody reads, so the pump fills the channel and blocks
	deadline := time.Now().Add(2 * time.Second)
	for len(w.messages) < cap(w.messages) {
		if time.Now().After(deadline) {
			t.Fatalf("message buffer never filled (%d)", len(w.messages))
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.Close()

	select {
	case <-w.pumpDone:
	case <-time.After(2 * time.Second):
		t.Fatal("pump goroutine still running after Close")
	}
	// a second Close must not panic on the stop channel
	w.Close()
}

func TestWebSocketConnection_ReadTimeout(t *testing.T) {
	url := floodServer(t, 1)

	c, err := OpenWebSocketConnection(url, "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer c.Close()

	buf := make([]byte, 16)
	c.SetReadTimeout(time.Second)
	n, err := c.Read(buf)
	if err != nil || string(buf[:n]) != "OK\r\n" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	c.SetReadTimeout(20 * time.Millisecond)
	start := time.Now()
	n, err = c.Read(buf)
	if n != 0 || err != nil {
		t.Errorf("idle Read = %d, %v; want 0, nil", n, err)
	}
	if time.Since(start) > time.Second {
		t.Error("idle Read ignored the timeout")
	}
}

// quietConnection is an idle modem that records Close
type quietConnection struct {
	mu     sync.Mutex
	closes int
}

func (q *quietConnection) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (q *quietConnection) Write(p []byte) (int, error)          { return len(p), nil }
func (q *quietConnection) SetReadTimeout(t time.Duration) error { return nil }
func (q *quietConnection) Closed() bool                         { return false }

func (q *quietConnection) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closes++
	return nil
}

func TestModemOwner_StopClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := &quietConnection{}
	owner := &modemOwner{
		commands: make(chan string, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		p:        tea.NewProgram(initialMonitorModel("test", nil), tea.WithContext(ctx)),
	}
	owner.conn = conn
	owner.engine = radioEngine(conn, zerolog.Nop())

	go owner.loop()
	time.Sleep(20 * time.Millisecond)
	owner.stop(2 * time.Second)

	select {
	case <-owner.stopped:
	default:
		t.Fatal("owner loop did not exit")
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closes != 1 {
		t.Errorf("connection closed %d times, want 1", conn.closes)
	}
}
