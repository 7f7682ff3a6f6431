// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cycle

import (
	"encoding/hex"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/usage"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/rs/zerolog"
)

// Deps are the collaborators a Controller drives
type Deps struct {
	Link     Link
	Tags     TagReader
	Auth     Authorizer
	Distance DistanceSensor
	Motion   MotionSensor
	Sleeper  Sleeper
	Counter  Counter
}

// Controller runs a single wake cycle
type Controller struct {
	settings Settings
	deps     Deps
	log      zerolog.Logger

	state  State
	usage  uint32
	report Report
}

// NewController creates a controller in the Booting state
func NewController(settings Settings, deps Deps, log zerolog.Logger) *Controller {
	return &Controller{
		settings: settings,
		deps:     deps,
		log:      log.With().Str("component", "cycle").Logger(),
	}
}

// State returns the current state
func (c *Controller) State() State {
	return c.state
}

// Run executes the cycle for cause and ends in sleep. It only returns if the
// Sleeper returns.
func (c *Controller) Run(cause WakeCause) Report {
	c.report = Report{Cause: cause}
	c.log = c.log.With().Stringer("wake", cause).Logger()

	c.enter(Booting)
	c.boot(cause)

	switch cause {
	case TimerWake:
		if c.sendHourlyReport() {
			c.waitForDownlink()
		}
		return c.sleep()
	case MotionWake:
		c.sendHourlyReport()
	}

	c.activeWindow()
	return c.sleep()
}

func (c *Controller) boot(cause WakeCause) {
	t := c.settings.Timing

	if v, err := c.deps.Counter.Load(); err != nil {
		c.log.Error().Err(err).Msg("usage counter unreadable")
	} else {
		c.usage = v
		c.log.Info().Uint32("usage_count", v).Msg("usage counter loaded")
	}

	pause(t.ModemBoot)

	if err := c.deps.Link.Test(); err != nil {
		c.log.Warn().Err(err).Msg("modem not answering AT")
	} else {
		c.log.Info().Msg("modem ready")
	}

	if err := c.deps.Link.Join(t.JoinAttempts, t.JoinTimeout); err != nil {
		c.log.Error().Err(err).Msg("join failed; reporting disabled until next wake")
	}
	c.report.Joined = c.deps.Link.Joined()

	if cause == ColdBoot {
		pause(t.MotionSettle)
	}
}

// sendHourlyReport sends the status report and clears the counter when the
// modem acknowledges it. It returns whether the report was acknowledged.
func (c *Controller) sendHourlyReport() bool {
	c.enter(Reporting)

	if !c.deps.Link.Joined() {
		c.log.Warn().Msg("not joined; hourly report skipped")
		return false
	}

	count, err := c.deps.Counter.Load()
	known := err == nil
	if !known {
		c.log.Error().Err(err).Msg("usage counter unreadable; reporting 0 and keeping stored count")
		count = 0
	}

	distance, ok := c.deps.Distance.ReadDistanceCm()
	if !ok {
		c.log.Warn().Msg("distance measurement timed out")
		distance = -1
	}
	fill := FillPercent(distance, c.settings.EmptyDepthCm)

	frame := wire.EncodeHourlyReport(c.settings.Name, fill, usage.Saturate(count))
	c.log.Info().
		Str("frame", hex.EncodeToString(frame)).
		Str("fill", wire.FormatFill(fill)).
		Uint32("usage_count", count).
		Msg("sending hourly report")

	if err := c.deps.Link.Send(frame, c.settings.UplinkPort); err != nil {
		c.report.ReportFailed = true
		c.log.Error().Err(err).Msg("hourly report not acknowledged; usage counter kept")
		return false
	}
	c.report.ReportSent = true

	if known {
		if err := c.deps.Counter.Clear(); err != nil {
			c.log.Error().Err(err).Msg("usage counter not cleared; count will be reported again")
		} else {
			c.usage = 0
			c.report.CounterCleared = true
		}
	}
	return true
}

func (c *Controller) waitForDownlink() {
	d := c.settings.Timing.DownlinkWait
	if d <= 0 {
		return
	}
	c.log.Info().Dur("wait", d).Msg("waiting for downlink")
	c.deps.Link.Listen(d)
}

func (c *Controller) activeWindow() {
	c.enter(ActiveWindowOpen)
	t := c.settings.Timing

	deadline := time.Now().Add(t.ActiveWindow)
	var lastBeat time.Time
	c.log.Info().Dur("window", t.ActiveWindow).Msg("active window open")

	for {
		c.deps.Link.Poll()

		if uid, ok := c.deps.Tags.PollTag(); ok {
			if c.admit(uid) {
				return
			}
		}

		now := time.Now()
		if !now.Before(deadline) {
			c.expire()
			return
		}
		if now.Sub(lastBeat) >= t.Heartbeat {
			c.heartbeat(deadline.Sub(now))
			lastBeat = now
		}

		pause(t.PollInterval)
	}
}

// admit checks uid and, when granted, sends the cleanup notification.
// It returns true when the window should close.
func (c *Controller) admit(uid []byte) bool {
	tag := wire.FormatTag(uid)

	granted, err := c.deps.Auth.IsAuthorized(tag)
	if err != nil {
		c.log.Error().Err(err).Str("tag", tag).Msg("authorization lookup failed; denying")
		granted = false
	}
	if !granted {
		c.report.Denied++
		c.log.Info().Str("tag", tag).Msg("tag denied")
		pause(c.settings.Timing.DeniedCooldown)
		return false
	}

	c.report.Admitted = tag
	c.log.Info().Str("tag", tag).Msg("worker admitted")

	pause(c.settings.Timing.CleanupSettle)
	c.sendWorkerCleanup(tag, uid)
	return true
}

func (c *Controller) sendWorkerCleanup(tag string, uid []byte) {
	if !c.deps.Link.Joined() {
		c.log.Warn().Str("tag", tag).Msg("not joined; cleanup notification skipped")
		return
	}

	var id [wire.UIDSize]byte
	copy(id[:], uid)
	frame := wire.EncodeWorkerCleanup(c.settings.Name, id)
	c.log.Info().Str("frame", hex.EncodeToString(frame)).Str("tag", tag).Msg("sending cleanup notification")

	if err := c.deps.Link.Send(frame, c.settings.UplinkPort); err != nil {
		c.log.Error().Err(err).Msg("cleanup notification not acknowledged")
		return
	}
	c.report.CleanupSent = true
	c.waitForDownlink()
}

func (c *Controller) expire() {
	c.log.Info().Msg("active window expired without admission")

	v, err := c.deps.Counter.Increment()
	if err != nil {
		c.log.Error().Err(err).Msg("usage counter not incremented; this window is lost")
		return
	}
	c.usage = v
}

func (c *Controller) heartbeat(remaining time.Duration) {
	distance, ok := c.deps.Distance.ReadDistanceCm()
	if !ok {
		distance = -1
	}
	c.log.Info().
		Float64("distance_cm", distance).
		Str("fill", wire.FormatFill(FillPercent(distance, c.settings.EmptyDepthCm))).
		Bool("motion", c.deps.Motion.MotionActive()).
		Uint32("usage_count", c.usage).
		Dur("sleep_in", remaining.Truncate(time.Second)).
		Msg("heartbeat")
}

type statser interface {
	Stats() *radio.Statistics
}

func (c *Controller) sleep() Report {
	c.enter(EnteringSleep)
	t := c.settings.Timing

	if s, ok := c.deps.Link.(statser); ok {
		st := s.Stats()
		c.log.Info().
			Uint64("commands", st.Commands).
			Uint64("acks", st.Acks).
			Uint64("timeouts", st.Timeouts).
			Uint64("frames", st.FramesCaptured).
			Uint64("dropped", st.FramesDropped).
			Msg("link statistics")
	}

	c.report.Usage = c.usage
	c.log.Info().
		Dur("timer", t.SleepTimer).
		Uint32("usage_count", c.usage).
		Msg("entering sleep; wake on motion or timer")

	if err := c.deps.Sleeper.Sleep(t.SleepTimer); err != nil {
		c.report.SleepErr = err
		c.log.Error().Err(err).Msg("sleep transition failed")
	}

	c.report.FinalState = c.state
	return c.report
}

func (c *Controller) enter(s State) {
	c.log.Debug().Stringer("from", c.state).Stringer("to", s).Msg("state")
	c.state = s
}

func pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
