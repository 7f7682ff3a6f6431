// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"time"

	"github.com/Thermoquad/binwarden/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	cfg        config.Config

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "binwarden",
	Short: "Sensorized waste bin firmware",
	Long: `Binwarden - firmware and bench tools for a sensorized waste bin.

The run command performs one wake cycle: join the LoRaWAN network through the
AT modem, report fill level and usage, admit workers by RFID during the active
window, then suspend until motion or the report timer wakes the board.

The remaining commands talk to the modem and local state directly for bench
work and field diagnosis.

Connection modes:
  Serial:    --port /dev/ttyS0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the BINWARDEN_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Modem serial port (overrides modem.port)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Modem baud rate (overrides modem.baud)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of a serial bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig reads the configuration file, applies flag overrides and sets up logging
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	if portName != "" {
		cfg.Modem.Port = portName
	}
	if baudRate != 0 {
		cfg.Modem.Baud = baudRate
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	setupLogging(cfg.Log)
	return nil
}

func setupLogging(lc config.LogConfig) {
	if lc.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || lc.Level == "" {
		log.Warn().Str("level", lc.Level).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
