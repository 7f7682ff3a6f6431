// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/binwarden/pkg/authstore"
	"github.com/Thermoquad/binwarden/pkg/config"
	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// openEngine opens the modem connection and wraps it in a transaction engine
func openEngine() (*radio.Engine, Connection, string, error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, "", err
	}
	return radioEngine(conn, log.Logger), conn, connInfo, nil
}

func radioEngine(conn Connection, logger zerolog.Logger) *radio.Engine {
	return radio.NewEngine(conn, cfg.RadioTiming(), logger)
}

// joinEngine runs the configured join procedure
func joinEngine(engine *radio.Engine) error {
	return engine.Join(cfg.Link.JoinAttempts, cfg.Link.JoinTimeout)
}

// openAuthStore opens the configured authorization backend
func openAuthStore() (authstore.Store, error) {
	switch cfg.Auth.Backend {
	case config.BackendPostgres:
		store, err := authstore.OpenSQL(cfg.Auth.DSN, cfg.Auth.Timeout)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return authstore.OpenFile(cfg.Auth.UsersFile)
	}
}

// printDownlink prints a captured frame, decoded when valid
func printDownlink(f radio.InboundFrame) {
	ts := time.Now().Format("15:04:05.000")
	d, err := wire.DecodeDownlink(f.Payload, f.Port)
	if err != nil {
		fmt.Printf("[%s] RX %s port=%d: %v\n", ts, f.Payload, f.Port, err)
		return
	}
	fmt.Printf("[%s] RX %s", ts, wire.FormatDownlink(d))
	if f.HasRSSI || f.HasSNR {
		fmt.Printf("  Signal: rssi=%d snr=%.1f\n", f.RSSI, f.SNR)
	}
}

// parseTag accepts "04A1B2C3", "04 A1 B2 C3" or "04:a1:b2:c3" and returns the
// canonical store key
func parseTag(s string) (string, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(strings.TrimSpace(s))
	uid, err := decodeHex(clean)
	if err != nil {
		return "", fmt.Errorf("invalid tag %q: %v", s, err)
	}
	if len(uid) < wire.UIDSize || len(uid) > 10 {
		return "", fmt.Errorf("invalid tag %q: %d bytes (want 4 to 10)", s, len(uid))
	}
	return wire.FormatTag(uid), nil
}

// decodeHex decodes hex text, tolerating spaces and a 0x prefix
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd hex length %d", len(s))
	}
	return hex.DecodeString(s)
}
