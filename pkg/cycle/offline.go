// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cycle

import (
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/wire"
)

// Stand-ins for collaborators that failed to open. The cycle still runs and
// still reaches sleep with them in place.

// OfflineLink is a modem that never answers and never joins
type OfflineLink struct {
	Err error
}

func (l OfflineLink) Test() error { return l.Err }

func (l OfflineLink) Join(attempts int, timeout time.Duration) error { return l.Err }

func (l OfflineLink) Send(frame []byte, port int) error { return radio.ErrNotJoined }

// Listen waits out d so the cycle keeps its timing
func (l OfflineLink) Listen(d time.Duration) { pause(d) }

func (l OfflineLink) Poll() {}

func (l OfflineLink) Joined() bool { return false }

// NoTags is a reader that never sees a tag
type NoTags struct{}

func (NoTags) PollTag() ([]byte, bool) { return nil, false }

// DenyAll refuses every tag and every change, returning Err
type DenyAll struct {
	Err error
}

func (a DenyAll) IsAuthorized(tag string) (bool, error) { return false, a.Err }

func (a DenyAll) Upsert(tag string, role wire.Role) error { return a.Err }

func (a DenyAll) Remove(tag string) error { return a.Err }

// NoDistance never produces a measurement
type NoDistance struct{}

func (NoDistance) ReadDistanceCm() (float64, bool) { return 0, false }

// NoMotion reports the motion line as idle
type NoMotion struct{}

func (NoMotion) MotionActive() bool { return false }

var (
	_ Link           = OfflineLink{}
	_ TagReader      = NoTags{}
	_ Authorizer     = DenyAll{}
	_ DistanceSensor = NoDistance{}
	_ MotionSensor   = NoMotion{}
)
