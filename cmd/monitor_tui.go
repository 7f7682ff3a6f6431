// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event kinds shown in the log
const (
	eventTX = iota
	eventRX
	eventDownlink
	eventInfo
	eventError
)

type monitorEvent struct {
	timestamp time.Time
	kind      int
	message   string
}

// lastDownlink is the most recent captured frame
type lastDownlink struct {
	at      time.Time
	frame   radio.InboundFrame
	decoded *wire.Downlink
	err     error
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo string
	commands chan<- string

	input     textinput.Model
	events    []monitorEvent
	maxEvents int

	stats     radio.Statistics
	session   radio.Session
	downlink  *lastDownlink
	downlinks int
	rejected  int

	busy           bool
	connectionLost bool
	width          int
	height         int
	quitting       bool
}

// Messages
type monitorTickMsg time.Time

type modemLineMsg struct {
	tx   bool
	line string
	at   time.Time
}

type downlinkMsg struct {
	frame radio.InboundFrame
	at    time.Time
}

type commandResultMsg struct {
	cmd     string
	err     error
	elapsed time.Duration
	session radio.Session
}

type linkStatsMsg struct {
	stats   radio.Statistics
	session radio.Session
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

func initialMonitorModel(connInfo string, commands chan<- string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "AT"
	ti.Prompt = "> "
	ti.CharLimit = 128
	ti.Width = 60
	ti.Focus()

	return monitorModel{
		connInfo:  connInfo,
		commands:  commands,
		input:     ti,
		events:    make([]monitorEvent, 0),
		maxEvents: 200,
		stats:     *radio.NewStatistics(),
		session:   radio.SessionUnjoined,
		width:     80,
		height:    24,
	}
}

// formatElapsed formats a duration as a human-friendly string
func formatElapsed(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}

	hours := total / 3600
	minutes := (total / 60) % 60
	seconds := total % 60

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return parts[0] + ", " + parts[1] + ", and " + parts[2]
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), textinput.Blink)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)

	case monitorTickMsg:
		return m, monitorTickCmd()

	case modemLineMsg:
		kind := eventRX
		if msg.tx {
			kind = eventTX
		}
		m.addEventAt(msg.at, kind, msg.line)

	case downlinkMsg:
		m.handleDownlink(msg)

	case commandResultMsg:
		m.busy = false
		m.session = msg.session
		if msg.err != nil {
			m.addEvent(eventError, fmt.Sprintf("%s failed after %v: %v", msg.cmd, msg.elapsed.Truncate(time.Millisecond), msg.err))
		} else {
			m.addEvent(eventInfo, fmt.Sprintf("%s ok in %v", msg.cmd, msg.elapsed.Truncate(time.Millisecond)))
		}

	case linkStatsMsg:
		m.stats = msg.stats
		m.session = msg.session

	case connectionLostMsg:
		m.connectionLost = true
		m.busy = false
		m.addEvent(eventError, "Connection lost, reconnecting...")

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.session = radio.SessionUnjoined
		m.addEvent(eventInfo, "Reconnected: "+msg.connInfo)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit queues the typed command for the modem goroutine
func (m *monitorModel) submit() {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return
	}
	if m.connectionLost {
		m.addEvent(eventError, "Cannot send command: connection lost")
		return
	}
	if m.busy {
		m.addEvent(eventError, "Previous command still running")
		return
	}

	select {
	case m.commands <- line:
		m.busy = true
		m.input.Reset()
	default:
		m.addEvent(eventError, "Command queue full")
	}
}

func (m *monitorModel) handleDownlink(msg downlinkMsg) {
	entry := &lastDownlink{at: msg.at, frame: msg.frame}
	d, err := wire.DecodeDownlink(msg.frame.Payload, msg.frame.Port)
	if err != nil {
		entry.err = err
		m.rejected++
		m.addEventAt(msg.at, eventError, fmt.Sprintf("Downlink %s rejected: %v", msg.frame.Payload, err))
	} else {
		entry.decoded = &d
		m.downlinks++
		summary := fmt.Sprintf("%s %s", wire.FormatDownlinkOp(d.Op), d.Tag())
		if d.Op == wire.OpInsertUser {
			summary += " " + d.Role.String()
		}
		m.addEventAt(msg.at, eventDownlink, summary)
	}
	m.downlink = entry
}

func (m *monitorModel) addEvent(kind int, message string) {
	m.addEventAt(time.Now(), kind, message)
}

func (m *monitorModel) addEventAt(at time.Time, kind int, message string) {
	m.events = append(m.events, monitorEvent{timestamp: at, kind: kind, message: message})

	// Keep only last N entries
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	txStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("14"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("BINWARDEN - MODEM MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Enter: send command | Esc: quit", m.connInfo)))
	s.WriteString("\n\n")

	// Session
	switch {
	case m.connectionLost:
		s.WriteString(errorStyle.Render("✗ Connection lost, reconnecting..."))
	case m.session == radio.SessionJoined:
		s.WriteString(valueStyle.Render("✓ Joined"))
	case m.session == radio.SessionJoining:
		s.WriteString(warningStyle.Render("⏳ Joining..."))
	default:
		s.WriteString(warningStyle.Render("Not joined"))
	}
	if m.busy {
		s.WriteString(headerStyle.Render("  (command running)"))
	}
	s.WriteString("\n\n")

	// Statistics
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Commands:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.Commands)),
		labelStyle.Render("Acked:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Acks, m.stats.AckRate())),
		labelStyle.Render("Timeouts:"), func() string {
			if m.stats.Timeouts > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts))
			}
			return valueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Downlinks:"), valueStyle.Render(fmt.Sprintf("%d", m.downlinks)),
		labelStyle.Render("Rejected:"), warningStyle.Render(fmt.Sprintf("%d", m.rejected+int(m.stats.FramesDropped))),
		labelStyle.Render("Up:"), valueStyle.Render(formatElapsed(time.Since(m.stats.StartTime))),
	))
	if m.stats.ModemErrors > 0 || m.stats.ReadErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("\n%s %s   %s %s",
			labelStyle.Render("Modem errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ModemErrors)),
			labelStyle.Render("Read errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ReadErrors)),
		))
	}
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest downlink (only shown once one arrived)
	if m.downlink != nil {
		s.WriteString(labelStyle.Render("Latest Downlink:"))
		s.WriteString("\n")
		content := strings.Builder{}
		f := m.downlink.frame
		content.WriteString(fmt.Sprintf("%s %s   %s %d\n",
			labelStyle.Render("Payload:"), valueStyle.Render(f.Payload),
			labelStyle.Render("Port:"), f.Port,
		))
		if f.HasRSSI || f.HasSNR {
			content.WriteString(fmt.Sprintf("%s %d dBm   %s %.1f dB\n",
				labelStyle.Render("RSSI:"), f.RSSI,
				labelStyle.Render("SNR:"), f.SNR,
			))
		}
		if m.downlink.err != nil {
			content.WriteString(errorStyle.Render(m.downlink.err.Error()))
		} else {
			content.WriteString(strings.TrimRight(wire.FormatDownlink(*m.downlink.decoded), "\n"))
		}
		s.WriteString(boxStyle.Render(content.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Modem Traffic:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if m.downlink != nil {
		logHeight -= 6
	}
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no traffic yet)"))
	} else {
		for i := startIdx; i < len(m.events); i++ {
			entry := m.events[i]
			timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
			var line string
			switch entry.kind {
			case eventTX:
				line = txStyle.Render("→ " + entry.message)
			case eventRX:
				line = "← " + entry.message
			case eventDownlink:
				line = valueStyle.Render("⇣ " + entry.message)
			case eventError:
				line = errorStyle.Render("✗ " + entry.message)
			default:
				line = warningStyle.Render("ℹ " + entry.message)
			}
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, line))
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}
