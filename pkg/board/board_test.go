// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/binwarden/pkg/cycle"
	"github.com/Thermoquad/binwarden/pkg/nvs"
	"github.com/rs/zerolog"
)

func tagFrame(kind byte, uid []byte) []byte {
	f := []byte{0x02, byte(len(uid) + 5), kind}
	f = append(f, uid...)
	sum := f[1]
	for _, b := range f[2:] {
		sum ^= b
	}
	return append(f, sum, 0x03)
}

// chunkPort hands out one queued chunk per Read
type chunkPort struct {
	chunks [][]byte
	reads  int
}

func (p *chunkPort) Read(b []byte) (int, error) {
	p.reads++
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *chunkPort) Close() error { return nil }

// ============================================================
// Tag Frames
// ============================================================

func TestParseTagFrame(t *testing.T) {
	frame := tagFrame(0x01, []byte{0x04, 0xA1, 0xB2, 0xC3})

	uid, rest, ok := ParseTagFrame(frame)
	if !ok || !bytes.Equal(uid, []byte{0x04, 0xA1, 0xB2, 0xC3}) || len(rest) != 0 {
		t.Fatalf("uid=% X rest=% X ok=%v", uid, rest, ok)
	}

	// leading garbage and a trailing partial frame
	buf := append([]byte{0xFF, 0x00, 0x02, 0x01}, frame...)
	buf = append(buf, 0x02, 0x09)
	uid, rest, ok = ParseTagFrame(buf)
	if !ok || !bytes.Equal(uid, []byte{0x04, 0xA1, 0xB2, 0xC3}) {
		t.Fatalf("uid=% X ok=%v", uid, ok)
	}
	if !bytes.Equal(rest, []byte{0x02, 0x09}) {
		t.Errorf("rest = % X", rest)
	}
}

func TestParseTagFrame_BadChecksum(t *testing.T) {
	frame := tagFrame(0x01, []byte{0x21, 0x47, 0xC2, 0x4C})
	frame[7] ^= 0xFF
	if _, _, ok := ParseTagFrame(frame); ok {
		t.Error("accepted frame with bad checksum")
	}
}

func TestParseTagFrame_Truncated(t *testing.T) {
	frame := tagFrame(0x01, []byte{0x21, 0x47, 0xC2, 0x4C})
	_, rest, ok := ParseTagFrame(frame[:5])
	if ok || len(rest) != 5 {
		t.Errorf("ok=%v rest=% X", ok, rest)
	}
}

func TestParseTagFrame_UIDLengths(t *testing.T) {
	tests := []struct {
		name string
		uid  []byte
		ok   bool
	}{
		{"4 bytes", []byte{0x04, 0xA1, 0xB2, 0xC3}, true},
		{"7 bytes", []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6}, true},
		{"10 bytes", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, true},
		{"3 bytes", []byte{0x04, 0xA1, 0xB2}, false},
		{"11 bytes", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, _, ok := ParseTagFrame(tagFrame(0x01, tt.uid))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !bytes.Equal(uid, tt.uid) {
				t.Errorf("uid = % X, want % X", uid, tt.uid)
			}
		})
	}
}

func TestTagReader_TwoFramesInOneRead(t *testing.T) {
	first := []byte{0x04, 0xA1, 0xB2, 0xC3}
	second := []byte{0x21, 0x47, 0xC2, 0x4C}
	chunk := append(tagFrame(0x01, first), tagFrame(0x01, second)...)
	port := &chunkPort{chunks: [][]byte{chunk}}
	r := NewTagReader(port)

	uid, ok := r.PollTag()
	if !ok || !bytes.Equal(uid, first) {
		t.Fatalf("first poll = % X, %v", uid, ok)
	}
	uid, ok = r.PollTag()
	if !ok || !bytes.Equal(uid, second) {
		t.Fatalf("second poll = % X, %v", uid, ok)
	}
	if port.reads != 1 {
		t.Errorf("reads = %d, buffered frame should not need a read", port.reads)
	}
	if _, ok := r.PollTag(); ok {
		t.Error("third poll returned a tag")
	}
	if len(r.buf) != 0 {
		t.Errorf("buffer not drained: % X", r.buf)
	}
}

func TestTagReader_SplitFrame(t *testing.T) {
	uid := []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6}
	frame := tagFrame(0x01, uid)
	r := NewTagReader(&chunkPort{chunks: [][]byte{frame[:4], frame[4:]}})

	if _, ok := r.PollTag(); ok {
		t.Fatal("tag returned from a partial frame")
	}
	got, ok := r.PollTag()
	if !ok || !bytes.Equal(got, uid) {
		t.Fatalf("poll = % X, %v", got, ok)
	}
}

func TestTagReader_HoldoffSuppressesRepeat(t *testing.T) {
	uid := []byte{0x04, 0xA1, 0xB2, 0xC3}
	other := []byte{0x21, 0x47, 0xC2, 0x4C}
	chunk := append(tagFrame(0x01, uid), tagFrame(0x01, uid)...)
	chunk = append(chunk, tagFrame(0x01, other)...)
	r := NewTagReader(&chunkPort{chunks: [][]byte{chunk}})

	if got, ok := r.PollTag(); !ok || !bytes.Equal(got, uid) {
		t.Fatalf("first poll = % X, %v", got, ok)
	}
	// the repeat is skipped in favour of the next card
	if got, ok := r.PollTag(); !ok || !bytes.Equal(got, other) {
		t.Fatalf("second poll = % X, %v", got, ok)
	}
}

// ============================================================
// Ultrasonic
// ============================================================

func TestEchoToCm(t *testing.T) {
	tests := []struct {
		echo time.Duration
		want float64
	}{
		{0, 0},
		{1749 * time.Microsecond, 29.99535},
		{875 * time.Microsecond, 15.00625},
	}
	for _, tt := range tests {
		if got := EchoToCm(tt.echo); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("EchoToCm(%v) = %v, want %v", tt.echo, got, tt.want)
		}
	}
}

// ============================================================
// Wake Cause and Sleep
// ============================================================

func TestDetectWakeCause(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		record   bool
		deadline time.Time
		want     cycle.WakeCause
	}{
		{"no record", false, time.Time{}, cycle.ColdBoot},
		{"timer fired", true, now.Add(-time.Second), cycle.TimerWake},
		{"deadline now", true, now, cycle.TimerWake},
		{"woken early", true, now.Add(time.Minute), cycle.MotionWake},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := nvs.Open(filepath.Join(t.TempDir(), "state.cbor"))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if tt.record {
				store.PutTime(KeySleptAt, now.Add(-3*time.Minute))
				store.PutTime(KeyTimerDeadline, tt.deadline)
			}

			got, err := DetectWakeCause(store, now)
			if err != nil {
				t.Fatalf("DetectWakeCause: %v", err)
			}
			if got != tt.want {
				t.Errorf("cause = %v, want %v", got, tt.want)
			}

			// the record is consumed
			again, _ := DetectWakeCause(store, now)
			if again != cycle.ColdBoot {
				t.Errorf("second detection = %v", again)
			}
		})
	}
}

func TestSleeper_SuspendArmsAndExits(t *testing.T) {
	dir := t.TempDir()
	cfg := SleeperConfig{
		RTCAlarm:     filepath.Join(dir, "wakealarm"),
		PowerState:   filepath.Join(dir, "state"),
		MotionWakeup: filepath.Join(dir, "wakeup"),
		Suspend:      true,
	}
	for _, p := range []string{cfg.RTCAlarm, cfg.PowerState, cfg.MotionWakeup} {
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	store, err := nvs.Open(filepath.Join(dir, "state.cbor"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	exitCode := -1
	s := NewSleeper(cfg, store, zerolog.Nop())
	s.now = func() time.Time { return now }
	s.exit = func(code int) { exitCode = code }

	if err := s.Sleep(3 * time.Minute); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d", exitCode)
	}

	for path, want := range map[string]string{
		cfg.RTCAlarm:     "+180",
		cfg.PowerState:   "mem",
		cfg.MotionWakeup: "enabled",
	} {
		got, _ := os.ReadFile(path)
		if string(got) != want {
			t.Errorf("%s = %q, want %q", filepath.Base(path), got, want)
		}
	}

	cause, err := DetectWakeCause(store, now.Add(3*time.Minute))
	if err != nil || cause != cycle.TimerWake {
		t.Errorf("cause = %v, err = %v", cause, err)
	}
}

func TestSleeper_NoSuspendOnlyRecords(t *testing.T) {
	dir := t.TempDir()
	store, err := nvs.Open(filepath.Join(dir, "state.cbor"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	exited := false
	s := NewSleeper(SleeperConfig{RTCAlarm: filepath.Join(dir, "missing", "wakealarm")}, store, zerolog.Nop())
	s.exit = func(int) { exited = true }

	if err := s.Sleep(time.Minute); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if !exited {
		t.Error("did not exit")
	}
	if cause, _ := DetectWakeCause(store, time.Now()); cause != cycle.MotionWake {
		t.Errorf("early wake detected as %v", cause)
	}
}

func TestSleeper_ArmFailureReturnsError(t *testing.T) {
	dir := t.TempDir()
	store, _ := nvs.Open(filepath.Join(dir, "state.cbor"))
	s := NewSleeper(SleeperConfig{
		RTCAlarm:   filepath.Join(dir, "missing", "wakealarm"),
		PowerState: filepath.Join(dir, "state"),
		Suspend:    true,
	}, store, zerolog.Nop())
	s.exit = func(int) { t.Error("exited after arm failure") }

	if err := s.Sleep(time.Minute); err == nil {
		t.Error("expected error")
	}
}

func TestSleeper_UnrecordedSleepStillExits(t *testing.T) {
	code := -1
	s := NewSleeper(SleeperConfig{Exit: func(c int) { code = c }}, nil, zerolog.Nop())

	if err := s.Sleep(time.Minute); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}
