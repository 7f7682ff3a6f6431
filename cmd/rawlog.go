// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "rawlog",
	Short: "Display modem output with decoded downlinks",
	Long: `Continuously print every line the modem emits, with a timestamp.

RX lines are decoded as downlink commands and printed below the raw line.
Nothing is written to the modem and no command is applied.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Binwarden - Raw Modem Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	engine.SetLineObserver(func(tx bool, line string) {
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), line)
	})
	engine.SetFrameHandler(frameHandler(printDownlink))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigs:
			fmt.Printf("\n%s", engine.Stats().String())
			return nil
		default:
		}

		engine.Listen(250 * time.Millisecond)

		if conn.Closed() {
			fmt.Printf("Connection closed\n")
			return nil
		}
	}
}
