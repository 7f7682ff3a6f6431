// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/binwarden/pkg/board"
	"github.com/Thermoquad/binwarden/pkg/cycle"
	"github.com/Thermoquad/binwarden/pkg/nvs"
	"github.com/Thermoquad/binwarden/pkg/usage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// counterKey is the nvs key of the usage counter
const counterKey = "usage_count"

var (
	runNoSuspend    bool
	runCause        string
	runMotionWakeup string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one wake cycle and suspend",
	Long: `Run one wake cycle of the bin.

The wake cause is read from the sleep record left by the previous cycle:
no record is a cold boot, a passed timer deadline is a timer wake and anything
earlier is a motion wake.

  cold boot  join, open the active window
  timer      join, send the hourly report, wait for downlinks, sleep
  motion     join, send the hourly report, open the active window

Every wake checks that the modem answers AT before joining. A modem, reader,
GPIO or authorization store that fails to open does not stop the cycle: the
modem stays offline, no tag is read and every tag is denied, and the board
still goes back to sleep.

The process suspends the board through sysfs and exits. A supervisor is
expected to start it again after resume. With --no-suspend it only records
the sleep and exits, leaving the restart to the supervisor timer.`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoSuspend, "no-suspend", false, "Record the sleep and exit without suspending")
	runCmd.Flags().StringVar(&runCause, "cause", "", "Force the wake cause (cold, motion, timer)")
	runCmd.Flags().StringVar(&runMotionWakeup, "motion-wakeup", "", "sysfs power/wakeup attribute of the motion line")
}

func parseCause(s string) (cycle.WakeCause, error) {
	switch s {
	case "cold", "cold_boot":
		return cycle.ColdBoot, nil
	case "motion":
		return cycle.MotionWake, nil
	case "timer":
		return cycle.TimerWake, nil
	}
	return cycle.ColdBoot, fmt.Errorf("unknown wake cause %q (use cold, motion or timer)", s)
}

func runCycle(cmd *cobra.Command, args []string) error {
	forced, hasForced := cycle.ColdBoot, runCause != ""
	if hasForced {
		var err error
		if forced, err = parseCause(runCause); err != nil {
			return err
		}
	}

	bootLog := log.With().Str("boot_id", uuid.NewString()).Str("device", cfg.Device.Name).Logger()

	cause := cycle.ColdBoot
	state, err := nvs.Open(cfg.Storage.StatePath)
	if err != nil {
		bootLog.Error().Err(err).Msg("state store unavailable; usage counter and sleep record disabled")
	} else if cause, err = board.DetectWakeCause(state, time.Now()); err != nil {
		bootLog.Error().Err(err).Msg("wake cause unknown, treating as cold boot")
	}
	if hasForced {
		cause = forced
	}
	bootLog = bootLog.With().Stringer("wake", cause).Logger()
	bootLog.Info().Msg("wake")

	deps, closeDeps := openCycleDeps(state, bootLog)
	defer closeDeps()

	report := cycle.NewController(cycleSettings(), deps, bootLog).Run(cause)
	if report.SleepErr != nil {
		return fmt.Errorf("sleep: %w", report.SleepErr)
	}
	return nil
}

// sleeperExit replaces the process exit after sleep; nil exits
var sleeperExit func(code int)

// openCycleDeps opens every collaborator of the cycle. One that fails to open
// is logged and replaced by its offline stand-in so the cycle always reaches
// sleep. state may be nil.
func openCycleDeps(state *nvs.Store, logger zerolog.Logger) (cycle.Deps, func()) {
	var closers []io.Closer
	deps := cycle.Deps{
		Tags:     cycle.NoTags{},
		Distance: cycle.NoDistance{},
		Motion:   cycle.NoMotion{},
	}

	if auth, err := openAuthStore(); err != nil {
		logger.Error().Err(err).Msg("authorization store unavailable; every tag is denied")
		deps.Auth = cycle.DenyAll{Err: err}
	} else {
		closers = append(closers, auth)
		deps.Auth = auth
	}

	if conn, connInfo, err := OpenConnection(); err != nil {
		logger.Error().Err(err).Msg("modem unavailable; reporting disabled")
		deps.Link = cycle.OfflineLink{Err: err}
	} else {
		closers = append(closers, conn)
		engine := radioEngine(conn, logger)
		engine.SetFrameHandler(cycle.NewDispatcher(deps.Auth, logger))
		deps.Link = engine
		logger.Info().Str("modem", connInfo).Msg("modem connected")
	}

	if err := board.Init(); err != nil {
		logger.Error().Err(err).Msg("GPIO unavailable; motion and fill level disabled")
	} else {
		if motion, err := board.NewMotion(cfg.Pins.Motion); err != nil {
			logger.Error().Err(err).Msg("motion sensor unavailable")
		} else {
			deps.Motion = motion
		}
		if ranger, err := board.NewUltrasonic(cfg.Pins.Trigger, cfg.Pins.Echo); err != nil {
			logger.Error().Err(err).Msg("ultrasonic sensor unavailable")
		} else {
			deps.Distance = ranger
		}
	}

	if reader, err := board.OpenSerialTagReader(cfg.RFID.Port, cfg.RFID.Baud); err != nil {
		logger.Error().Err(err).Msg("tag reader unavailable; admission disabled")
	} else {
		closers = append(closers, reader)
		deps.Tags = reader
	}

	var counterStore usage.Store = missingState{}
	if state != nil {
		counterStore = state.Counter(counterKey)
	}
	deps.Counter = usage.New(counterStore, usage.Policy{
		Attempts: cfg.Storage.CounterRetries,
		Backoff:  usage.DefaultPolicy().Backoff,
	}, logger)

	deps.Sleeper = board.NewSleeper(board.SleeperConfig{
		RTCAlarm:     board.DefaultRTCAlarm,
		PowerState:   board.DefaultPowerState,
		MotionWakeup: runMotionWakeup,
		Suspend:      !runNoSuspend,
		Exit:         sleeperExit,
	}, state, logger)

	return deps, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}
}

var errNoState = errors.New("state store unavailable")

// missingState backs the counter when the state store could not be opened
type missingState struct{}

func (missingState) GetCounter() (uint32, error) { return 0, errNoState }

func (missingState) SetCounter(uint32) error { return errNoState }

func cycleSettings() cycle.Settings {
	c := cfg.Cycle
	return cycle.Settings{
		Name:         cfg.DeviceName(),
		EmptyDepthCm: cfg.Device.EmptyDepthCm,
		UplinkPort:   cfg.Link.UplinkPort,
		Timing: cycle.Timing{
			ActiveWindow:   c.ActiveWindow,
			DownlinkWait:   c.DownlinkWait,
			SleepTimer:     c.SleepTimer,
			CleanupSettle:  c.CleanupSettle,
			DeniedCooldown: c.DeniedCooldown,
			ModemBoot:      c.ModemBoot,
			MotionSettle:   c.MotionSettle,
			PollInterval:   c.PollInterval,
			Heartbeat:      c.Heartbeat,
			JoinTimeout:    cfg.Link.JoinTimeout,
			JoinAttempts:   cfg.Link.JoinAttempts,
		},
	}
}
