// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/binwarden/pkg/nvs"
	"github.com/rs/zerolog"
)

// Default sysfs locations
const (
	DefaultRTCAlarm   = "/sys/class/rtc/rtc0/wakealarm"
	DefaultPowerState = "/sys/power/state"
)

// SleeperConfig selects how the board sleeps
type SleeperConfig struct {
	RTCAlarm     string         // RTC wakealarm attribute
	PowerState   string         // suspend request attribute
	MotionWakeup string         // power/wakeup attribute of the motion line; empty to skip
	Suspend      bool           // false only records the sleep and exits
	Exit         func(code int) // called after the sleep; nil is os.Exit
}

var errNoStore = errors.New("no state store")

// Sleeper records the sleep, arms the wake sources and suspends. The process
// then exits so the supervisor starts a fresh cycle: it never returns control
// to the caller except on error before the exit.
type Sleeper struct {
	cfg   SleeperConfig
	store *nvs.Store
	log   zerolog.Logger
	now   func() time.Time
	exit  func(code int)
}

// NewSleeper creates a sleeper writing its record to store. A nil store
// still sleeps, without a record.
func NewSleeper(cfg SleeperConfig, store *nvs.Store, log zerolog.Logger) *Sleeper {
	exit := cfg.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &Sleeper{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "sleep").Logger(),
		now:   time.Now,
		exit:  exit,
	}
}

// Sleep arms the timer for d plus the motion line and suspends
func (s *Sleeper) Sleep(d time.Duration) error {
	if err := s.record(s.now(), d); err != nil {
		s.log.Error().Err(err).Msg("sleep not recorded; next wake reads as cold boot")
	}

	if s.cfg.Suspend {
		if err := s.arm(d); err != nil {
			return err
		}
		s.log.Info().Dur("timer", d).Msg("suspending")
		if err := writeAttr(s.cfg.PowerState, "mem"); err != nil {
			return fmt.Errorf("suspend: %w", err)
		}
		s.log.Info().Msg("resumed")
	} else {
		s.log.Info().Dur("timer", d).Msg("suspend disabled; exiting for supervisor restart")
	}

	s.exit(0)
	return nil
}

func (s *Sleeper) record(now time.Time, d time.Duration) error {
	if s.store == nil {
		return fmt.Errorf("record sleep: %w", errNoStore)
	}
	if err := s.store.PutTime(KeySleptAt, now); err != nil {
		return fmt.Errorf("record sleep: %w", err)
	}
	if err := s.store.PutTime(KeyTimerDeadline, now.Add(d)); err != nil {
		return fmt.Errorf("record sleep: %w", err)
	}
	return nil
}

func (s *Sleeper) arm(d time.Duration) error {
	if s.cfg.MotionWakeup != "" {
		if err := writeAttr(s.cfg.MotionWakeup, "enabled"); err != nil {
			return fmt.Errorf("arm motion wake: %w", err)
		}
	}
	// the alarm must be cleared before it can be set again
	if err := writeAttr(s.cfg.RTCAlarm, "0"); err != nil {
		return fmt.Errorf("clear RTC alarm: %w", err)
	}
	secs := int64((d + time.Second - 1) / time.Second)
	if err := writeAttr(s.cfg.RTCAlarm, fmt.Sprintf("+%d", secs)); err != nil {
		return fmt.Errorf("arm RTC alarm: %w", err)
	}
	return nil
}

func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
