// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/spf13/cobra"
)

var (
	pingTimeout time.Duration
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure modem round trip by sending repeated AT probes",
	Long: `Send AT to the modem several times and report round trip times.

This exercises the whole path to the modem, including the WebSocket bridge
when --url is used. It is useful for verifying:
  - The connection is established
  - HTTP Basic authentication works (WebSocket)
  - The modem answers consistently

Exit codes:
  0 - All probes acknowledged
  1 - One or more probes failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 0, "Timeout for each probe (default: link.probe_timeout)")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of probes to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	timeout := pingTimeout
	if timeout <= 0 {
		timeout = cfg.Link.ProbeTimeout
	}
	count := max(pingCount, 1)

	fmt.Printf("Binwarden - Modem Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v per probe\n", timeout)
	fmt.Printf("Count: %d probes\n\n", count)

	var (
		successCount int
		failCount    int
		rttMin       time.Duration
		rttMax       time.Duration
		rttTotal     time.Duration
	)

	for i := 1; i <= count; i++ {
		fmt.Printf("Probe %d/%d: ", i, count)

		start := time.Now()
		_, err := engine.Command(radio.CmdProbe, timeout)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("OK, rtt=%v\n", rtt.Round(time.Millisecond))
			successCount++
			rttTotal += rtt
			if rttMin == 0 || rtt < rttMin {
				rttMin = rtt
			}
			rttMax = max(rttMax, rtt)
		}

		if i < count {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d probes sent, %d acknowledged, %.0f%% loss\n",
		count, successCount, float64(failCount)/float64(count)*100)
	if successCount > 0 {
		avg := rttTotal / time.Duration(successCount)
		fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
			rttMin.Round(time.Millisecond), avg.Round(time.Millisecond), rttMax.Round(time.Millisecond))
	}

	if failCount > 0 {
		conn.Close()
		os.Exit(1)
	}
	return nil
}
