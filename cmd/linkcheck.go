// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/spf13/cobra"
)

var linkCheckDuration time.Duration

var linkCheckCmd = &cobra.Command{
	Use:   "linkcheck",
	Short: "Test raw connection stability without sending commands",
	Long: `Connect to the modem and just wait, logging any lines received or errors
encountered. Nothing is written to the modem. Useful for debugging WebSocket
bridge drops and serial noise.

Exit codes:
  0 - Test completed normally
  1 - Connection lost during the test
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().DurationVar(&linkCheckDuration, "duration", 30*time.Second, "Test duration")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %v\n\n", linkCheckDuration)

	// Start a goroutine to read from the connection
	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			if err := conn.SetReadTimeout(100 * time.Millisecond); err != nil {
				errChan <- err
				return
			}
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if conn.Closed() {
				errChan <- ErrConnectionClosed
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(linkCheckDuration)
	var tokenizer radio.LineTokenizer
	bytesReceived := 0
	linesReceived := 0
	downlinks := 0

	results := func() {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Second))
		fmt.Printf("Lines received: %d\n", linesReceived)
		fmt.Printf("Downlinks seen: %d\n", downlinks)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		if dropped := tokenizer.Dropped(); dropped > 0 {
			fmt.Printf("Overlong lines dropped: %d\n", dropped)
		}
	}

	fmt.Printf("Listening for data...\n\n")

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			for _, line := range tokenizer.Feed(data) {
				linesReceived++
				if strings.Contains(line, radio.MarkerRX) {
					downlinks++
				}
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), line)
			}

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			results()
			fmt.Printf("Result: FAILED (connection error)\n")
			conn.Close()
			os.Exit(1)

		case <-heartbeat.C:
			// Just a heartbeat to show the test is running
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	if line, ok := tokenizer.Flush(); ok {
		linesReceived++
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), line)
	}
	results()
	fmt.Printf("Result: PASSED (connection stable)\n")

	return nil
}
