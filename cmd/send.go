// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/usage"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	sendFill   int
	sendUsage  int
	sendPort   int
	sendListen string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Join and send an uplink",
	Long: `Join the network and send one uplink frame.

  send report --fill 50 --usage 3     HourlyReport (0x02)
  send cleanup 04A1B2C3               WorkerCleanup (0x01)
  send raw 024C582D3030313203         any validated uplink

The usage counter is never touched. Downlinks captured while sending are
decoded and printed but never applied.`,
}

var sendReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Send an HourlyReport",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fill := uint8(wire.FillUnknown)
		if sendFill >= 0 {
			fill = uint8(min(sendFill, 100))
		}
		frame := wire.EncodeHourlyReport(cfg.DeviceName(), fill, usage.Saturate(uint32(max(sendUsage, 0))))
		return sendFrame(frame)
	},
}

var sendCleanupCmd = &cobra.Command{
	Use:   "cleanup <uid>",
	Short: "Send a WorkerCleanup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := decodeHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid uid: %v", err)
		}
		if len(uid) < wire.UIDSize {
			return fmt.Errorf("uid must have at least %d bytes", wire.UIDSize)
		}
		var id [wire.UIDSize]byte
		copy(id[:], uid)
		return sendFrame(wire.EncodeWorkerCleanup(cfg.DeviceName(), id))
	},
}

var sendRawCmd = &cobra.Command{
	Use:   "raw <hex>",
	Short: "Send a hex encoded uplink after validating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := decodeHex(args[0])
		if err != nil {
			return err
		}
		if err := wire.ValidateUplink(frame); err != nil {
			return err
		}
		return sendFrame(frame)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.AddCommand(sendReportCmd, sendCleanupCmd, sendRawCmd)

	sendCmd.PersistentFlags().IntVar(&sendPort, "fport", 0, "Application port (default link.uplink_port)")
	sendCmd.PersistentFlags().StringVar(&sendListen, "listen", "15s", "Listen for downlinks after a successful send")
	sendReportCmd.Flags().IntVar(&sendFill, "fill", -1, "Fill percent (negative sends the unknown sentinel)")
	sendReportCmd.Flags().IntVar(&sendUsage, "usage", 0, "Usage count (saturates at 255)")
}

func sendFrame(frame []byte) error {
	listen, err := parseDuration(sendListen)
	if err != nil {
		return err
	}
	port := sendPort
	if port == 0 {
		port = cfg.Link.UplinkPort
	}

	u, err := wire.DecodeUplink(frame)
	if err != nil {
		return err
	}
	fmt.Print(wire.FormatUplink(u))
	fmt.Printf("  Bytes: %s\n\n", wire.FormatHex(frame))

	engine, conn, _, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	engine.SetFrameHandler(frameHandler(printDownlink))

	if err := joinEngine(engine); err != nil {
		return err
	}

	start := time.Now()
	if err := engine.Send(frame, port); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	fmt.Printf("Acknowledged in %v\n", time.Since(start).Truncate(time.Millisecond))

	if listen > 0 {
		fmt.Printf("Listening for %v...\n", listen)
		engine.Listen(listen)
	}
	return nil
}

func frameHandler(fn func(radio.InboundFrame)) radio.FrameHandler {
	return radio.FrameHandlerFunc(fn)
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %v", s, err)
	}
	return d, nil
}
