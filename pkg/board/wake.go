// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"fmt"
	"time"

	"github.com/Thermoquad/binwarden/pkg/cycle"
	"github.com/Thermoquad/binwarden/pkg/nvs"
)

// Sleep record keys
const (
	KeySleptAt       = "sleep.slept_at"
	KeyTimerDeadline = "sleep.timer_deadline"
)

// DetectWakeCause reads and consumes the sleep record left by the previous
// process. No record means the board was powered up. A passed timer deadline
// means the RTC alarm fired; anything earlier was the motion line.
func DetectWakeCause(store *nvs.Store, now time.Time) (cycle.WakeCause, error) {
	_, slept, err := store.GetTime(KeySleptAt)
	if err != nil {
		return cycle.ColdBoot, fmt.Errorf("read sleep record: %w", err)
	}
	deadline, armed, err := store.GetTime(KeyTimerDeadline)
	if err != nil {
		return cycle.ColdBoot, fmt.Errorf("read sleep record: %w", err)
	}

	if err := store.Delete(KeySleptAt, KeyTimerDeadline); err != nil {
		return cycle.ColdBoot, fmt.Errorf("consume sleep record: %w", err)
	}

	switch {
	case !slept || !armed:
		return cycle.ColdBoot, nil
	case !now.Before(deadline):
		return cycle.TimerWake, nil
	default:
		return cycle.MotionWake, nil
	}
}
