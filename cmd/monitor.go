// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and driving the modem",
	Long: `Watch the modem in an interactive terminal UI.

Features:
  - Live modem traffic (commands and responses)
  - Decoded downlink commands with signal quality
  - Link statistics (acks, timeouts, captured and dropped frames)
  - AT command entry; AT+JOIN runs the join procedure

Downlinks are decoded and shown but never applied to the authorization store.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// modemOwner is the only goroutine touching the engine. The TUI hands it
// commands through a channel; everything else flows back as tea messages.
type modemOwner struct {
	engine   *radio.Engine
	conn     Connection
	commands chan string
	done     chan struct{}
	stopped  chan struct{}
	p        *tea.Program
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	owner := &modemOwner{
		commands: make(chan string, 8),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	m := initialMonitorModel(connInfo, owner.commands)
	p := tea.NewProgram(m, tea.WithAltScreen())
	owner.p = p
	owner.attach(conn)

	go owner.loop()

	_, runErr := p.Run()
	owner.stop(time.Second)
	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

// attach builds a fresh engine over conn and taps it for the TUI
func (o *modemOwner) attach(conn Connection) {
	// the TUI owns the terminal, keep the engine quiet
	engine := radioEngine(conn, zerolog.Nop())
	engine.SetLineObserver(func(tx bool, line string) {
		o.p.Send(modemLineMsg{tx: tx, line: line, at: time.Now()})
	})
	engine.SetFrameHandler(radio.FrameHandlerFunc(func(f radio.InboundFrame) {
		o.p.Send(downlinkMsg{frame: f, at: time.Now()})
	}))
	o.conn = conn
	o.engine = engine
}

// stop asks the owner to close the connection and waits up to grace for it.
// A command in flight finishes on its own timeout.
func (o *modemOwner) stop(grace time.Duration) {
	close(o.done)
	select {
	case <-o.stopped:
	case <-time.After(grace):
	}
}

func (o *modemOwner) loop() {
	defer close(o.stopped)
	defer func() { o.conn.Close() }()

	lastStats := time.Time{}
	for {
		select {
		case <-o.done:
			return
		case line := <-o.commands:
			o.p.Send(o.execute(line))
		default:
			o.engine.Poll()
		}

		if o.conn.Closed() {
			o.p.Send(connectionLostMsg{})
			if !o.reconnect() {
				return
			}
		}

		if time.Since(lastStats) >= 500*time.Millisecond {
			lastStats = time.Now()
			o.p.Send(linkStatsMsg{stats: *o.engine.Stats(), session: o.engine.Session()})
		}
	}
}

// reconnect reopens the modem connection with exponential backoff.
// Returns false if shutdown was requested while waiting.
func (o *modemOwner) reconnect() bool {
	o.conn.Close()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-o.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			o.attach(conn)
			o.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (o *modemOwner) execute(line string) commandResultMsg {
	cmd := strings.TrimSpace(line)
	start := time.Now()

	var err error
	if strings.EqualFold(cmd, radio.CmdJoin) {
		err = o.engine.Join(1, cfg.Link.JoinTimeout)
	} else {
		_, err = o.engine.Command(cmd, cfg.Link.SendTimeout)
	}

	return commandResultMsg{
		cmd:     cmd,
		err:     err,
		elapsed: time.Since(start),
		session: o.engine.Session(),
	}
}
