// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the LoRaWAN network (OTAA)",
	Long: `Issue AT+JOIN with the configured attempts, timeout and backoff, then
listen for downlinks for --listen. Any captured downlink is decoded and
printed but never applied.`,
	RunE: runJoin,
}

var joinListen string

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().StringVar(&joinListen, "listen", "0s", "Listen for downlinks after joining")
}

func runJoin(cmd *cobra.Command, args []string) error {
	listen, err := parseDuration(joinListen)
	if err != nil {
		return err
	}

	engine, conn, connInfo, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	engine.SetFrameHandler(frameHandler(printDownlink))

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Joining (%d attempts, %v each)...\n", cfg.Link.JoinAttempts, cfg.Link.JoinTimeout)

	if err := joinEngine(engine); err != nil {
		return err
	}
	fmt.Printf("Joined\n")

	if listen > 0 {
		fmt.Printf("Listening for %v...\n", listen)
		engine.Listen(listen)
	}
	fmt.Print(engine.Stats().String())
	return nil
}
