// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nvs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "state.cbor"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStore_DefaultWhenMissing(t *testing.T) {
	s := openTemp(t)
	v, err := s.GetUint("usage_count", 7)
	if err != nil {
		t.Fatalf("GetUint: %v", err)
	}
	if v != 7 {
		t.Errorf("expected default 7, got %d", v)
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	s := openTemp(t)
	if err := s.PutUint("usage_count", 42); err != nil {
		t.Fatalf("PutUint: %v", err)
	}
	if err := s.PutUint("other", 1); err != nil {
		t.Fatalf("PutUint: %v", err)
	}

	reopened, err := Open(s.Path())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := reopened.GetUint("usage_count", 0)
	if err != nil {
		t.Fatalf("GetUint: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTemp(t)
	if err := s.PutUint("a", 1); err != nil {
		t.Fatalf("PutUint: %v", err)
	}
	if err := s.Delete("a", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v, _ := s.GetUint("a", 99); v != 99 {
		t.Errorf("expected key removed, got %d", v)
	}
}

func TestStore_Time(t *testing.T) {
	s := openTemp(t)
	if _, ok, err := s.GetTime("slept_at"); ok || err != nil {
		t.Fatalf("expected absent time, got ok=%v err=%v", ok, err)
	}
	now := time.Now()
	if err := s.PutTime("slept_at", now); err != nil {
		t.Fatalf("PutTime: %v", err)
	}
	got, ok, err := s.GetTime("slept_at")
	if err != nil || !ok {
		t.Fatalf("GetTime: ok=%v err=%v", ok, err)
	}
	if !got.Equal(time.Unix(0, now.UnixNano())) {
		t.Errorf("expected %v, got %v", now, got)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	s := openTemp(t)
	if err := os.WriteFile(s.Path(), []byte{0xFF, 0x00, 0x13}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := s.GetUint("usage_count", 0); err == nil {
		t.Error("expected decode error for corrupt file")
	}
}

func TestCounter(t *testing.T) {
	s := openTemp(t)
	c := s.Counter("usage_count")

	if v, err := c.GetCounter(); err != nil || v != 0 {
		t.Fatalf("expected 0, got %d (%v)", v, err)
	}
	if err := c.SetCounter(300); err != nil {
		t.Fatalf("SetCounter: %v", err)
	}
	if v, err := c.GetCounter(); err != nil || v != 300 {
		t.Errorf("expected 300, got %d (%v)", v, err)
	}
}
