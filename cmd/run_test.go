// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/binwarden/pkg/board"
	"github.com/Thermoquad/binwarden/pkg/config"
	"github.com/Thermoquad/binwarden/pkg/cycle"
	"github.com/Thermoquad/binwarden/pkg/nvs"
	"github.com/rs/zerolog"
)

// missingHardware points every device at a path that does not exist and
// shortens the cycle. It restores the globals when the test ends.
func missingHardware(t *testing.T) (string, *int) {
	t.Helper()
	dir := t.TempDir()

	saved, savedURL, savedCause, savedNoSuspend, savedExit := cfg, wsURL, runCause, runNoSuspend, sleeperExit
	t.Cleanup(func() {
		cfg, wsURL, runCause, runNoSuspend, sleeperExit = saved, savedURL, savedCause, savedNoSuspend, savedExit
	})

	cfg = config.Default()
	cfg.Modem.Port = filepath.Join(dir, "no-modem")
	cfg.RFID.Port = filepath.Join(dir, "no-reader")
	cfg.Pins = config.PinConfig{Motion: "NO_MOTION_PIN", Trigger: "NO_TRIGGER_PIN", Echo: "NO_ECHO_PIN"}
	cfg.Storage.StatePath = filepath.Join(dir, "state.cbor")
	cfg.Storage.CounterRetries = 1
	// a directory is not a readable users file
	cfg.Auth.UsersFile = dir
	cfg.Cycle = config.CycleConfig{
		ActiveWindow:   20 * time.Millisecond,
		DownlinkWait:   time.Millisecond,
		SleepTimer:     time.Hour,
		CleanupSettle:  time.Millisecond,
		DeniedCooldown: time.Millisecond,
		PollInterval:   time.Millisecond,
		Heartbeat:      10 * time.Millisecond,
	}

	wsURL = ""
	runCause = ""
	runNoSuspend = true
	code := -1
	sleeperExit = func(c int) { code = c }
	return dir, &code
}

func TestRunCycle_MissingModemStillSleeps(t *testing.T) {
	_, code := missingHardware(t)

	state, err := nvs.Open(cfg.Storage.StatePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	slept := time.Now().Add(-2 * time.Hour)
	if err := state.PutTime(board.KeySleptAt, slept); err != nil {
		t.Fatalf("PutTime: %v", err)
	}
	if err := state.PutTime(board.KeyTimerDeadline, slept.Add(time.Hour)); err != nil {
		t.Fatalf("PutTime: %v", err)
	}

	if err := runCycle(runCmd, nil); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	if *code != 0 {
		t.Errorf("exit code = %d, want 0 after sleep", *code)
	}
	at, rearmed, err := state.GetTime(board.KeySleptAt)
	if err != nil || !rearmed {
		t.Fatalf("sleep record re-armed = %v, err = %v", rearmed, err)
	}
	if !at.After(slept) {
		t.Errorf("sleep record not rewritten: %v", at)
	}
	if cause, _ := board.DetectWakeCause(state, at.Add(2*time.Hour)); cause != cycle.TimerWake {
		t.Errorf("next wake = %v, want timer", cause)
	}
}

func TestRunCycle_UnwritableStateStillSleeps(t *testing.T) {
	dir, code := missingHardware(t)
	// the parent of the state file is a regular file
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg.Storage.StatePath = filepath.Join(blocker, "state.cbor")

	if err := runCycle(runCmd, nil); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if *code != 0 {
		t.Errorf("exit code = %d, want 0 after sleep", *code)
	}
}

func TestOpenCycleDeps_FallsBackWhenDevicesMissing(t *testing.T) {
	missingHardware(t)

	deps, closeDeps := openCycleDeps(nil, zerolog.Nop())
	defer closeDeps()

	if _, ok := deps.Link.(cycle.OfflineLink); !ok {
		t.Errorf("link = %T, want offline", deps.Link)
	}
	if _, ok := deps.Tags.(cycle.NoTags); !ok {
		t.Errorf("tags = %T, want none", deps.Tags)
	}
	if _, ok := deps.Auth.(cycle.DenyAll); !ok {
		t.Errorf("auth = %T, want deny all", deps.Auth)
	}
	if granted, err := deps.Auth.IsAuthorized("04 A1 B2 C3"); granted || err == nil {
		t.Errorf("IsAuthorized = %v, %v; want denied with error", granted, err)
	}
	if _, ok := deps.Distance.ReadDistanceCm(); ok {
		t.Error("distance measured without a sensor")
	}
	if _, err := deps.Counter.Load(); err == nil {
		t.Error("counter loaded without a state store")
	}
}
