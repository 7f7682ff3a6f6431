// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cycle drives one wake of the bin: join the network, report, admit
// workers during the active window and go back to sleep.
//
// A Controller runs exactly once per process. Sleep ends the process, so the
// only state that survives into the next wake is what the usage accumulator
// and the authorization store persisted.
package cycle

import (
	"time"

	"github.com/Thermoquad/binwarden/pkg/wire"
)

// WakeCause is why this process started
type WakeCause int

// Wake causes
const (
	ColdBoot WakeCause = iota
	MotionWake
	TimerWake
)

// String returns the cause name used in logs
func (c WakeCause) String() string {
	switch c {
	case ColdBoot:
		return "cold_boot"
	case MotionWake:
		return "motion"
	case TimerWake:
		return "timer"
	default:
		return "unknown"
	}
}

// State is the controller state
type State int

// Controller states
const (
	Booting State = iota
	Reporting
	ActiveWindowOpen
	EnteringSleep
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Reporting:
		return "reporting"
	case ActiveWindowOpen:
		return "active_window"
	case EnteringSleep:
		return "entering_sleep"
	default:
		return "unknown"
	}
}

// Link is the radio transaction engine as seen by the controller
type Link interface {
	Test() error
	Join(attempts int, timeout time.Duration) error
	Send(frame []byte, port int) error
	Listen(d time.Duration)
	Poll()
	Joined() bool
}

// TagReader reports a tag held to the reader. It must not block.
type TagReader interface {
	PollTag() ([]byte, bool)
}

// Authorizer is the local authorization store
type Authorizer interface {
	IsAuthorized(tag string) (bool, error)
	Upsert(tag string, role wire.Role) error
	Remove(tag string) error
}

// DistanceSensor measures the distance to the bin contents.
// ok is false when the measurement timed out.
type DistanceSensor interface {
	ReadDistanceCm() (cm float64, ok bool)
}

// MotionSensor reports the motion line level
type MotionSensor interface {
	MotionActive() bool
}

// Sleeper arms the motion and timer wake sources and suspends the device.
// The production implementation never returns.
type Sleeper interface {
	Sleep(timer time.Duration) error
}

// Counter is the durable usage accumulator
type Counter interface {
	Load() (uint32, error)
	Increment() (uint32, error)
	Clear() error
}

// Timing holds the cycle timings
type Timing struct {
	ActiveWindow   time.Duration
	DownlinkWait   time.Duration
	SleepTimer     time.Duration
	CleanupSettle  time.Duration
	DeniedCooldown time.Duration
	ModemBoot      time.Duration
	MotionSettle   time.Duration
	PollInterval   time.Duration
	Heartbeat      time.Duration
	JoinTimeout    time.Duration
	JoinAttempts   int
}

// DefaultTiming returns the timings used on the device
func DefaultTiming() Timing {
	return Timing{
		ActiveWindow:   30 * time.Second,
		DownlinkWait:   15 * time.Second,
		SleepTimer:     3 * time.Minute,
		CleanupSettle:  2 * time.Second,
		DeniedCooldown: time.Second,
		ModemBoot:      3 * time.Second,
		MotionSettle:   5 * time.Second,
		PollInterval:   10 * time.Millisecond,
		Heartbeat:      2 * time.Second,
		JoinTimeout:    60 * time.Second,
		JoinAttempts:   3,
	}
}

// Settings identifies the bin and its radio port
type Settings struct {
	Name         wire.DeviceName
	EmptyDepthCm float64
	UplinkPort   int
	Timing       Timing
}

// Report summarizes one cycle. It is only observable when the Sleeper returns.
type Report struct {
	Cause          WakeCause
	Joined         bool
	ReportSent     bool   // HourlyReport acknowledged
	ReportFailed   bool   // HourlyReport attempted and not acknowledged
	Admitted       string // tag of the admitted worker, empty if none
	CleanupSent    bool
	Denied         int
	CounterCleared bool
	Usage          uint32 // counter value at sleep, as far as the controller knows
	FinalState     State
	SleepErr       error
}
