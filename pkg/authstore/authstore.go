// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package authstore holds the local list of tags allowed to open the bin.
//
// Tags are keyed by the space separated uppercase hex string produced by
// wire.FormatTag, for both locally scanned cards and remote user commands.
package authstore

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/binwarden/pkg/wire"
)

// User is one authorized tag
type User struct {
	Tag  string `yaml:"tag"`
	Role string `yaml:"role"`
	Name string `yaml:"name,omitempty"`
}

// ErrInvalidRole is returned when asked to store a role the device does not know
var ErrInvalidRole = errors.New("authstore: invalid role")

// Store is implemented by every backend
type Store interface {
	Lookup(tag string) (User, bool, error)
	IsAuthorized(tag string) (bool, error)
	Upsert(tag string, role wire.Role) error
	Remove(tag string) error
	List() ([]User, error)
	Close() error
}

func checkRole(role wire.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidRole, byte(role))
	}
	return nil
}
