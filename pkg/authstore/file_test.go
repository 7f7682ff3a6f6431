// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package authstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/binwarden/pkg/wire"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "users.yml"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	ok, err := s.IsAuthorized("21 47 C2 4C")
	if err != nil || ok {
		t.Errorf("expected denied, got ok=%v err=%v", ok, err)
	}
}

func TestFileStore_UpsertRemovePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "users.yml")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := s.Upsert("04 A1 B2 C3", wire.RoleWorker); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert("04 A1 B2 C3", wire.RoleAdmin); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert("21 47 C2 4C", wire.RoleWorker); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Remove("21 47 C2 4C"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("FF FF FF FF"); err != nil {
		t.Fatalf("Remove unknown: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	users, err := reopened.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %+v", users)
	}
	if users[0].Tag != "04 A1 B2 C3" || users[0].Role != "ADMIN" {
		t.Errorf("unexpected user: %+v", users[0])
	}
}

func TestFileStore_RejectsInvalidRole(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "users.yml"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Upsert("04 A1 B2 C3", wire.Role(3)); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if users, _ := s.List(); len(users) != 0 {
		t.Errorf("expected no mutation, got %+v", users)
	}
}

func TestFileStore_LoadsNamesAndRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yml")
	content := "users:\n  - tag: \"21 47 C2 4C\"\n    role: WORKER\n    name: Ana\n"
	if err := os.WriteFile(good, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := OpenFile(good)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	u, ok, _ := s.Lookup("21 47 C2 4C")
	if !ok || u.Name != "Ana" {
		t.Errorf("unexpected lookup: %+v %v", u, ok)
	}

	bad := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(bad, []byte("users:\n  - tag: x\n    role: JANITOR\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := OpenFile(bad); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}
