// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cycle

import (
	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/rs/zerolog"
)

// Dispatcher applies downlink user commands to the authorization store.
// It is installed as the radio engine's frame handler.
type Dispatcher struct {
	auth Authorizer
	log  zerolog.Logger

	Applied  int
	Rejected int
}

// NewDispatcher creates a dispatcher writing to auth
func NewDispatcher(auth Authorizer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		auth: auth,
		log:  log.With().Str("component", "dispatch").Logger(),
	}
}

// HandleFrame decodes f and applies it. Frames that fail validation are
// dropped without touching the store.
func (d *Dispatcher) HandleFrame(f radio.InboundFrame) {
	cmd, err := wire.DecodeDownlink(f.Payload, f.Port)
	if err != nil {
		d.Rejected++
		d.log.Warn().Err(err).Str("payload", f.Payload).Int("port", f.Port).Msg("downlink rejected")
		return
	}

	tag := cmd.Tag()
	switch cmd.Op {
	case wire.OpInsertUser:
		err = d.auth.Upsert(tag, cmd.Role)
	case wire.OpDeleteUser:
		err = d.auth.Remove(tag)
	}
	if err != nil {
		d.log.Error().Err(err).Str("command", wire.FormatDownlinkOp(cmd.Op)).Str("tag", tag).Msg("authorization store update failed")
		return
	}

	d.Applied++
	evt := d.log.Info().Str("command", wire.FormatDownlinkOp(cmd.Op)).Str("tag", tag)
	if cmd.Op == wire.OpInsertUser {
		evt = evt.Stringer("role", cmd.Role)
	}
	if f.HasRSSI {
		evt = evt.Int("rssi", f.RSSI)
	}
	if f.HasSNR {
		evt = evt.Float64("snr", f.SNR)
	}
	evt.Msg("downlink applied")
}

var _ radio.FrameHandler = (*Dispatcher)(nil)
