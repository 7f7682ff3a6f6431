// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package usage keeps the count of active windows that closed without a worker
// cleanup since the last delivered report.
//
// The count lives only in the Store. Every mutation is written through at once
// because the process does not resume after sleep; it restarts.
package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Store is the persistence collaborator
type Store interface {
	GetCounter() (uint32, error)
	SetCounter(v uint32) error
}

// Policy controls how failed store calls are retried
type Policy struct {
	Attempts int           // total tries per call, at least 1
	Backoff  time.Duration // pause between tries
}

// DefaultPolicy retries three times with a short pause
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Backoff: 50 * time.Millisecond}
}

// Accumulator is the durable usage counter
type Accumulator struct {
	store  Store
	policy Policy
	log    zerolog.Logger
}

// New creates an accumulator over store
func New(store Store, policy Policy, log zerolog.Logger) *Accumulator {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Accumulator{
		store:  store,
		policy: policy,
		log:    log.With().Str("component", "usage").Logger(),
	}
}

// Load returns the persisted count
func (a *Accumulator) Load() (uint32, error) {
	var v uint32
	err := a.retry("load", func() error {
		var err error
		v, err = a.store.GetCounter()
		return err
	})
	return v, err
}

// Increment adds one and writes it through. If the current value cannot be
// read nothing is written, so a read failure never resets the count.
func (a *Accumulator) Increment() (uint32, error) {
	v, err := a.Load()
	if err != nil {
		return 0, err
	}
	if v < math.MaxUint32 {
		v++
	}
	if err := a.retry("increment", func() error { return a.store.SetCounter(v) }); err != nil {
		return 0, err
	}
	a.log.Info().Uint32("usage_count", v).Msg("usage counter incremented")
	return v, nil
}

// Clear resets the count. Call it only right after a delivered report.
func (a *Accumulator) Clear() error {
	if err := a.retry("clear", func() error { return a.store.SetCounter(0) }); err != nil {
		return err
	}
	a.log.Info().Msg("usage counter cleared")
	return nil
}

func (a *Accumulator) retry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= a.policy.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		a.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("counter store call failed")
		if attempt < a.policy.Attempts {
			time.Sleep(a.policy.Backoff)
		}
	}
	return fmt.Errorf("usage: %s: %w", op, err)
}

// Saturate converts a count to its one byte wire form
func Saturate(v uint32) uint8 {
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(v)
}
