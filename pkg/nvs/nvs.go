// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nvs is a small non-volatile key/value store kept in one CBOR file.
//
// Every Put rewrites the file through a temporary file and rename so a power
// cut leaves either the old or the new document, never a torn one.
package nvs

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const documentVersion = 1

type document struct {
	Version uint8             `cbor:"1,keyasint"`
	Values  map[string]uint64 `cbor:"2,keyasint"`
}

// Store is a CBOR backed key/value file
type Store struct {
	path string
	mu   sync.Mutex
}

// Open prepares a store at path. The file is created on first Put.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("nvs: create directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// GetUint returns the value for key, or def when the key is absent
func (s *Store) GetUint(key string, def uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return 0, err
	}
	if v, ok := doc.Values[key]; ok {
		return v, nil
	}
	return def, nil
}

// PutUint stores value under key
func (s *Store) PutUint(key string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Values[key] = value
	return s.write(doc)
}

// Delete removes key; deleting a missing key is not an error
func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(doc.Values, k)
	}
	return s.write(doc)
}

// GetTime returns a timestamp stored with PutTime
func (s *Store) GetTime(key string) (time.Time, bool, error) {
	v, err := s.GetUint(key, 0)
	if err != nil || v == 0 {
		return time.Time{}, false, err
	}
	return time.Unix(0, int64(v)), true, nil
}

// PutTime stores a timestamp with nanosecond precision
func (s *Store) PutTime(key string, t time.Time) error {
	return s.PutUint(key, uint64(t.UnixNano()))
}

func (s *Store) read() (*document, error) {
	doc := &document{Version: documentVersion, Values: map[string]uint64{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nvs: read %s: %w", s.path, err)
	}
	if err := cbor.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("nvs: decode %s: %w", s.path, err)
	}
	if doc.Values == nil {
		doc.Values = map[string]uint64{}
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	doc.Version = documentVersion
	data, err := cbor.Marshal(doc)
	if err != nil {
		return fmt.Errorf("nvs: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".nvs-*")
	if err != nil {
		return fmt.Errorf("nvs: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("nvs: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("nvs: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("nvs: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("nvs: replace %s: %w", s.path, err)
	}
	return nil
}

// Counter exposes one key as a uint32 counter
type Counter struct {
	store *Store
	key   string
}

// Counter returns a counter view of key
func (s *Store) Counter(key string) *Counter {
	return &Counter{store: s, key: key}
}

// GetCounter returns the stored count, 0 when never written
func (c *Counter) GetCounter() (uint32, error) {
	v, err := c.store.GetUint(c.key, 0)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		v = math.MaxUint32
	}
	return uint32(v), nil
}

// SetCounter stores the count
func (c *Counter) SetCounter(v uint32) error {
	return c.store.PutUint(c.key, uint64(v))
}
