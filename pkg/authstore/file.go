// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package authstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Thermoquad/binwarden/pkg/wire"
	"gopkg.in/yaml.v3"
)

type userFile struct {
	Users []User `yaml:"users"`
}

// FileStore implements Store on a YAML file, for boards without a database
type FileStore struct {
	path  string
	mu    sync.Mutex
	users map[string]User
}

// OpenFile loads path; a missing file is an empty store
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, users: map[string]User{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	var f userFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	for _, u := range f.Users {
		if _, ok := wire.ParseRole(u.Role); !ok {
			return nil, fmt.Errorf("users file: tag %q: %w %q", u.Tag, ErrInvalidRole, u.Role)
		}
		s.users[u.Tag] = u
	}
	return s, nil
}

// Close is a no-op; every mutation is already on disk
func (s *FileStore) Close() error {
	return nil
}

// Lookup returns the user holding tag
func (s *FileStore) Lookup(tag string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[tag]
	return u, ok, nil
}

// IsAuthorized reports whether tag is known
func (s *FileStore) IsAuthorized(tag string) (bool, error) {
	_, ok, err := s.Lookup(tag)
	return ok, err
}

// Upsert inserts tag or updates its role, keeping any name
func (s *FileStore) Upsert(tag string, role wire.Role) error {
	if err := checkRole(role); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[tag]
	u.Tag = tag
	u.Role = role.String()
	s.users[tag] = u
	return s.save()
}

// Remove deletes tag; removing an unknown tag is not an error
func (s *FileStore) Remove(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[tag]; !ok {
		return nil
	}
	delete(s.users, tag)
	return s.save()
}

// List returns every user ordered by tag
func (s *FileStore) List() ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *FileStore) sorted() []User {
	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Tag < users[j].Tag })
	return users
}

func (s *FileStore) save() error {
	data, err := yaml.Marshal(userFile{Users: s.sorted()})
	if err != nil {
		return fmt.Errorf("encode users file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create users directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
