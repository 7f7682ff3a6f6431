// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the binwarden YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given
const DefaultPath = "/etc/binwarden/binwarden.yml"

// Authorization backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config is the full device configuration
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Modem   SerialConfig  `yaml:"modem"`
	Link    LinkConfig    `yaml:"link"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Pins    PinConfig     `yaml:"pins"`
	RFID    SerialConfig  `yaml:"rfid"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// DeviceConfig identifies the bin
type DeviceConfig struct {
	Name         string  `yaml:"name"`
	EmptyDepthCm float64 `yaml:"empty_depth_cm"`
}

// SerialConfig names a serial port
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// LinkConfig holds the radio transaction budgets
type LinkConfig struct {
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	PostAckWait  time.Duration `yaml:"post_ack_wait"`
	JoinAttempts int           `yaml:"join_attempts"`
	JoinTimeout  time.Duration `yaml:"join_timeout"`
	JoinBackoff  time.Duration `yaml:"join_backoff"`
	JoinSettle   time.Duration `yaml:"join_settle"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	UplinkPort   int           `yaml:"uplink_port"`
}

// CycleConfig holds the wake cycle timings
type CycleConfig struct {
	ActiveWindow   time.Duration `yaml:"active_window"`
	DownlinkWait   time.Duration `yaml:"downlink_wait"`
	SleepTimer     time.Duration `yaml:"sleep_timer"`
	CleanupSettle  time.Duration `yaml:"cleanup_settle"`
	DeniedCooldown time.Duration `yaml:"denied_cooldown"`
	ModemBoot      time.Duration `yaml:"modem_boot"`
	MotionSettle   time.Duration `yaml:"motion_settle"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
}

// PinConfig names the GPIO lines, as understood by periph gpioreg
type PinConfig struct {
	Motion  string `yaml:"motion"`
	Trigger string `yaml:"trigger"`
	Echo    string `yaml:"echo"`
}

// StorageConfig locates the persistent state
type StorageConfig struct {
	StatePath      string `yaml:"state_path"`
	CounterRetries int    `yaml:"counter_retries"`
}

// AuthConfig selects the authorization store
type AuthConfig struct {
	Backend   string        `yaml:"backend"`
	UsersFile string        `yaml:"users_file"`
	DSN       string        `yaml:"dsn"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file overrides it
func Default() Config {
	return Config{
		Device: DeviceConfig{Name: "LX-001", EmptyDepthCm: 30},
		Modem:  SerialConfig{Port: "/dev/ttyS0", Baud: 9600},
		Link: LinkConfig{
			ProbeTimeout: 2 * time.Second,
			SendTimeout:  5 * time.Second,
			PostAckWait:  10 * time.Second,
			JoinAttempts: 3,
			JoinTimeout:  60 * time.Second,
			JoinBackoff:  5 * time.Second,
			JoinSettle:   500 * time.Millisecond,
			PollTimeout:  10 * time.Millisecond,
			UplinkPort:   1,
		},
		Cycle: CycleConfig{
			ActiveWindow:   30 * time.Second,
			DownlinkWait:   15 * time.Second,
			SleepTimer:     3 * time.Minute,
			CleanupSettle:  2 * time.Second,
			DeniedCooldown: time.Second,
			ModemBoot:      3 * time.Second,
			MotionSettle:   5 * time.Second,
			PollInterval:   10 * time.Millisecond,
			Heartbeat:      2 * time.Second,
		},
		Pins:    PinConfig{Motion: "GPIO4", Trigger: "GPIO6", Echo: "GPIO7"},
		RFID:    SerialConfig{Port: "/dev/ttyUSB0", Baud: 115200},
		Storage: StorageConfig{StatePath: "/var/lib/binwarden/state.cbor", CounterRetries: 3},
		Auth: AuthConfig{
			Backend:   BackendFile,
			UsersFile: "/var/lib/binwarden/users.yml",
			Timeout:   5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load overlays the file at path onto Default. A missing file at the
// default path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects values the device cannot run with
func (c Config) Validate() error {
	if _, err := wire.ParseDeviceName(c.Device.Name); err != nil {
		return fmt.Errorf("device.name: %w", err)
	}
	if c.Device.EmptyDepthCm <= 0 {
		return fmt.Errorf("device.empty_depth_cm must be positive, got %v", c.Device.EmptyDepthCm)
	}
	if c.Link.JoinAttempts < 1 {
		return fmt.Errorf("link.join_attempts must be at least 1, got %d", c.Link.JoinAttempts)
	}
	if c.Link.UplinkPort < 1 || c.Link.UplinkPort > 223 {
		return fmt.Errorf("link.uplink_port must be in 1..223, got %d", c.Link.UplinkPort)
	}
	if c.Storage.CounterRetries < 1 {
		return fmt.Errorf("storage.counter_retries must be at least 1, got %d", c.Storage.CounterRetries)
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{"link.probe_timeout", c.Link.ProbeTimeout},
		{"link.send_timeout", c.Link.SendTimeout},
		{"link.join_timeout", c.Link.JoinTimeout},
		{"link.poll_timeout", c.Link.PollTimeout},
		{"cycle.active_window", c.Cycle.ActiveWindow},
		{"cycle.sleep_timer", c.Cycle.SleepTimer},
		{"cycle.poll_interval", c.Cycle.PollInterval},
		{"cycle.heartbeat", c.Cycle.Heartbeat},
		{"auth.timeout", c.Auth.Timeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.key, d.d)
		}
	}

	optional := []struct {
		key string
		d   time.Duration
	}{
		{"link.post_ack_wait", c.Link.PostAckWait},
		{"link.join_backoff", c.Link.JoinBackoff},
		{"link.join_settle", c.Link.JoinSettle},
		{"cycle.downlink_wait", c.Cycle.DownlinkWait},
		{"cycle.cleanup_settle", c.Cycle.CleanupSettle},
		{"cycle.denied_cooldown", c.Cycle.DeniedCooldown},
		{"cycle.modem_boot", c.Cycle.ModemBoot},
		{"cycle.motion_settle", c.Cycle.MotionSettle},
	}
	for _, d := range optional {
		if d.d < 0 {
			return fmt.Errorf("%s must not be negative, got %v", d.key, d.d)
		}
	}

	switch c.Auth.Backend {
	case BackendFile:
		if c.Auth.UsersFile == "" {
			return fmt.Errorf("auth.users_file is required for the file backend")
		}
	case BackendPostgres:
		if c.Auth.DSN == "" {
			return fmt.Errorf("auth.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown auth.backend %q", c.Auth.Backend)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}

	return nil
}

// DeviceName returns the validated device name
func (c Config) DeviceName() wire.DeviceName {
	name, _ := wire.ParseDeviceName(c.Device.Name)
	return name
}

// RadioTiming converts the link section for radio.NewEngine
func (c Config) RadioTiming() radio.Timing {
	return radio.Timing{
		ProbeTimeout: c.Link.ProbeTimeout,
		SendTimeout:  c.Link.SendTimeout,
		PostAckWait:  c.Link.PostAckWait,
		JoinSettle:   c.Link.JoinSettle,
		JoinBackoff:  c.Link.JoinBackoff,
		PollTimeout:  c.Link.PollTimeout,
	}
}
