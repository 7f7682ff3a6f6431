// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Timing holds the transaction budgets. Every wait is bounded.
type Timing struct {
	ProbeTimeout time.Duration // AT probe
	SendTimeout  time.Duration // AT+SENDB ack
	PostAckWait  time.Duration // listen after a send ack for a piggy-backed RX line
	JoinSettle   time.Duration // quiet period before each AT+JOIN
	JoinBackoff  time.Duration // pause between failed join attempts
	PollTimeout  time.Duration // single read during Poll and Drain
}

// DefaultTiming returns the budgets used on the device
func DefaultTiming() Timing {
	return Timing{
		ProbeTimeout: 2 * time.Second,
		SendTimeout:  5 * time.Second,
		PostAckWait:  10 * time.Second,
		JoinSettle:   500 * time.Millisecond,
		JoinBackoff:  5 * time.Second,
		PollTimeout:  10 * time.Millisecond,
	}
}

// LineObserver sees every command written and every line read
type LineObserver func(tx bool, line string)

// outcome of a transaction
type outcome int

const (
	pending outcome = iota
	succeeded
	failed
)

type classifier func(resp string) outcome

func classifyAck(resp string) outcome {
	if strings.Contains(resp, TokenOK) {
		return succeeded
	}
	if strings.Contains(resp, TokenError) {
		return failed
	}
	return pending
}

func classifyJoin(resp string) outcome {
	if strings.Contains(resp, TokenOK) ||
		strings.Contains(resp, TokenJoined) ||
		strings.Contains(resp, TokenJoinSuccess) {
		return succeeded
	}
	if strings.Contains(resp, TokenError) || strings.Contains(resp, TokenJoinFailed) {
		return failed
	}
	return pending
}

// Engine runs strictly sequential transactions against the modem
type Engine struct {
	port     Port
	timing   Timing
	handler  FrameHandler
	observer LineObserver
	log      zerolog.Logger
	session  Session
	idle     LineTokenizer
	stats    *Statistics
	readBuf  []byte
}

// NewEngine creates an engine over an open port. The session starts unjoined.
func NewEngine(port Port, timing Timing, log zerolog.Logger) *Engine {
	return &Engine{
		port:    port,
		timing:  timing,
		log:     log.With().Str("component", "radio").Logger(),
		session: SessionUnjoined,
		stats:   NewStatistics(),
		readBuf: make([]byte, 128),
	}
}

// SetFrameHandler sets the receiver for captured downlinks
func (e *Engine) SetFrameHandler(h FrameHandler) {
	e.handler = h
}

// SetLineObserver sets a tap on modem traffic
func (e *Engine) SetLineObserver(o LineObserver) {
	e.observer = o
}

// Session returns the current join state
func (e *Engine) Session() Session {
	return e.session
}

// Joined reports whether sends are allowed
func (e *Engine) Joined() bool {
	return e.session == SessionJoined
}

// Stats returns the live statistics
func (e *Engine) Stats() *Statistics {
	return e.stats
}

// Test probes the modem with a bare AT
func (e *Engine) Test() error {
	e.Drain()
	_, res := e.transact(CmdProbe, e.timing.ProbeTimeout, classifyAck, 0)
	return e.result(CmdProbe, res)
}

// Join issues AT+JOIN up to attempts times, each bounded by timeout
func (e *Engine) Join(attempts int, timeout time.Duration) error {
	e.session = SessionJoining
	var last error = ErrTimeout

	for attempt := 1; attempt <= attempts; attempt++ {
		e.log.Info().Int("attempt", attempt).Int("of", attempts).Msg("joining network (OTAA)")
		e.stats.JoinAttempts++

		e.Drain()
		time.Sleep(e.timing.JoinSettle)

		_, res := e.transact(CmdJoin, timeout, classifyJoin, 0)
		if res == succeeded {
			e.session = SessionJoined
			e.log.Info().Int("attempt", attempt).Msg("joined network")
			return nil
		}
		last = e.result(CmdJoin, res)
		e.log.Warn().Err(last).Int("attempt", attempt).Msg("join attempt failed")

		if attempt < attempts {
			time.Sleep(e.timing.JoinBackoff)
		}
	}

	e.session = SessionUnjoined
	return fmt.Errorf("%w after %d attempts: %v", ErrJoinFailed, attempts, last)
}

// Send transmits frame on the given application port. It returns once the ack
// is seen and the post-ack window has elapsed, or on error. The post-ack
// window only affects downlink capture, never the result.
func (e *Engine) Send(frame []byte, port int) error {
	if e.session != SessionJoined {
		return ErrNotJoined
	}
	payload := strings.ToUpper(hex.EncodeToString(frame))
	cmd := fmt.Sprintf("%s=%d:%s", CmdSend, port, payload)

	e.Drain()
	_, res := e.transact(cmd, e.timing.SendTimeout, classifyAck, e.timing.PostAckWait)
	return e.result(CmdSend, res)
}

// Command runs an arbitrary AT command and returns the raw response
func (e *Engine) Command(cmd string, timeout time.Duration) (string, error) {
	e.Drain()
	resp, res := e.transact(cmd, timeout, classifyAck, 0)
	return resp, e.result(cmd, res)
}

// Listen reads idle traffic for d, dispatching any downlinks
func (e *Engine) Listen(d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if n := e.readChunk(remaining); n > 0 {
			e.feedIdle(e.readBuf[:n])
		}
	}
}

// Poll performs one short read of idle traffic
func (e *Engine) Poll() {
	if n := e.readChunk(e.timing.PollTimeout); n > 0 {
		e.feedIdle(e.readBuf[:n])
	}
}

// Drain consumes whatever the modem has already sent. Drained bytes are
// scanned like any other idle traffic rather than thrown away.
func (e *Engine) Drain() {
	for i := 0; i < 64; i++ {
		n := e.readChunk(e.timing.PollTimeout)
		if n == 0 {
			break
		}
		e.feedIdle(e.readBuf[:n])
	}
	if line, ok := e.idle.Flush(); ok {
		e.handleLine(line)
	}
}

// transact writes cmd and reads until classify decides or timeout elapses.
// After success it keeps reading for grace. The whole buffer is then scanned
// for downlinks.
func (e *Engine) transact(cmd string, timeout time.Duration, classify classifier, grace time.Duration) (string, outcome) {
	e.stats.Commands++
	e.observe(true, cmd)
	e.log.Debug().Str("tx", cmd).Msg("modem command")

	if _, err := e.port.Write([]byte(cmd + lineEnding)); err != nil {
		e.log.Error().Err(err).Str("tx", cmd).Msg("modem write failed")
		return "", pending
	}

	var resp strings.Builder
	res := pending
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		n := e.readChunk(remaining)
		if n == 0 {
			continue
		}
		resp.Write(e.readBuf[:n])

		if res == pending {
			res = classify(resp.String())
			if res == failed {
				break
			}
			if res == succeeded {
				if grace <= 0 {
					break
				}
				e.log.Debug().Dur("grace", grace).Msg("ack received, listening for downlink")
				deadline = time.Now().Add(grace)
			}
		}
	}

	raw := resp.String()
	for _, line := range SplitLines(raw) {
		e.observe(false, line)
		e.log.Debug().Str("rx", line).Msg("modem response")
	}
	e.dispatch(raw)
	return raw, res
}

// result converts an outcome into the error taxonomy and counts it
func (e *Engine) result(cmd string, res outcome) error {
	switch res {
	case succeeded:
		e.stats.Acks++
		return nil
	case failed:
		e.stats.ModemErrors++
		return fmt.Errorf("%s: %w", cmd, ErrModem)
	default:
		e.stats.Timeouts++
		return fmt.Errorf("%s: %w", cmd, ErrTimeout)
	}
}

// readChunk does one bounded read into readBuf
func (e *Engine) readChunk(max time.Duration) int {
	if max < time.Millisecond {
		max = time.Millisecond
	}
	if err := e.port.SetReadTimeout(max); err != nil {
		e.log.Debug().Err(err).Msg("set read timeout")
	}
	n, err := e.port.Read(e.readBuf)
	if err != nil {
		e.stats.ReadErrors++
		e.log.Debug().Err(err).Msg("modem read error")
		// A dead port returns immediately; do not spin.
		time.Sleep(minDuration(max, e.timing.PollTimeout))
		return 0
	}
	e.stats.BytesRead += uint64(n)
	return n
}

func (e *Engine) feedIdle(data []byte) {
	for _, line := range e.idle.Feed(data) {
		e.handleLine(line)
	}
}

// handleLine processes one complete idle line
func (e *Engine) handleLine(line string) {
	e.observe(false, line)
	f, err := ParseRXLine(line)
	switch err {
	case nil:
		e.deliver(f)
	case errMalformed:
		e.stats.FramesDropped++
		e.log.Warn().Str("rx", line).Msg("dropping malformed downlink line")
	default:
		e.log.Debug().Str("rx", line).Msg("unsolicited modem output")
	}
}

func (e *Engine) dispatch(raw string) {
	frames, dropped := ScanFrames(raw)
	if dropped > 0 {
		e.stats.FramesDropped += uint64(dropped)
		e.log.Warn().Int("dropped", dropped).Msg("dropping malformed downlink lines")
	}
	for _, f := range frames {
		e.deliver(f)
	}
}

func (e *Engine) deliver(f InboundFrame) {
	e.stats.FramesCaptured++
	ev := e.log.Info().Str("payload", f.Payload).Int("port", f.Port)
	if f.HasRSSI {
		ev = ev.Int("rssi", f.RSSI)
	}
	if f.HasSNR {
		ev = ev.Float64("snr", f.SNR)
	}
	ev.Msg("downlink received")
	if e.handler != nil {
		e.handler.HandleFrame(f)
	}
}

func (e *Engine) observe(tx bool, line string) {
	if e.observer != nil {
		e.observer(tx, line)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
