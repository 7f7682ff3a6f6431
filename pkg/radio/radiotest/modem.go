// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package radiotest provides a scripted modem for exercising radio.Engine
package radiotest

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Step is one chunk of modem output, emitted After the command was written
type Step struct {
	After time.Duration
	Data  string
}

// Responder maps a written command line to the modem's output
type Responder func(cmd string) []Step

type chunk struct {
	at   time.Time
	data []byte
}

// Modem implements radio.Port with timed, scripted replies
type Modem struct {
	mu      sync.Mutex
	queue   []chunk
	timeout time.Duration
	writes  []string
	respond Responder
}

// NewModem creates a modem answering with respond (nil means silent)
func NewModem(respond Responder) *Modem {
	return &Modem{respond: respond, timeout: 10 * time.Millisecond}
}

// Inject schedules unsolicited output after d
func (m *Modem) Inject(d time.Duration, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueue(time.Now().Add(d), data)
}

// Writes returns the command lines written so far
func (m *Modem) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

// Write records each CRLF terminated command and schedules its reply
func (m *Modem) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\r\n"), "\r\n") {
		m.writes = append(m.writes, line)
		if m.respond == nil {
			continue
		}
		for _, s := range m.respond(line) {
			m.enqueue(now.Add(s.After), s.Data)
		}
	}
	return len(p), nil
}

// SetReadTimeout sets how long Read waits for due output
func (m *Modem) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = t
	return nil
}

// Read returns due output or 0, nil once the read timeout passes
func (m *Modem) Read(p []byte) (int, error) {
	m.mu.Lock()
	deadline := time.Now().Add(m.timeout)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.queue) > 0 && !time.Now().Before(m.queue[0].at) {
			head := &m.queue[0]
			n := copy(p, head.data)
			if n < len(head.data) {
				head.data = head.data[n:]
			} else {
				m.queue = m.queue[1:]
			}
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *Modem) enqueue(at time.Time, data string) {
	m.queue = append(m.queue, chunk{at: at, data: []byte(data)})
	sort.SliceStable(m.queue, func(i, j int) bool {
		return m.queue[i].at.Before(m.queue[j].at)
	})
}

// Reply is a Responder building block: answer cmd prefix with steps
func Reply(table map[string][]Step) Responder {
	return func(cmd string) []Step {
		best := ""
		for prefix := range table {
			if strings.HasPrefix(cmd, prefix) && len(prefix) > len(best) {
				best = prefix
			}
		}
		if best == "" {
			return nil
		}
		return table[best]
	}
}
