// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the modem by sending a bare AT command",
	Long: `Send AT to the modem and wait for OK.

Exit codes:
  0 - Modem acknowledged
  1 - No acknowledgement (timeout or ERROR)
  2 - Connection error

Useful for checking wiring and baud rate before running a cycle.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Binwarden - Modem Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v\n\n", cfg.Link.ProbeTimeout)

	engine.SetLineObserver(func(tx bool, line string) {
		if tx {
			fmt.Printf("> %s\n", line)
		} else {
			fmt.Printf("< %s\n", line)
		}
	})

	if err := engine.Test(); err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		conn.Close()
		os.Exit(1)
	}

	fmt.Printf("SUCCESS: modem acknowledged\n")
	return nil
}
