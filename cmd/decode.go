// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/spf13/cobra"
)

var decodeUplink bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex | RX line>",
	Short: "Decode a payload or modem RX line offline",
	Long: `Decode a frame without touching the modem.

An argument starting with RX: is parsed as a modem downlink line. Anything
else is treated as hex: a downlink by default, an uplink with --uplink.

Examples:
  binwarden decode 'RX:0104A1B2C3D401:1:-80:7'
  binwarden decode 022147C24C
  binwarden decode --uplink 024C582D3030313203`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeUplink, "uplink", false, "Decode the hex as an uplink frame")
}

func runDecode(cmd *cobra.Command, args []string) error {
	arg := strings.TrimSpace(args[0])

	if strings.Contains(arg, radio.MarkerRX) {
		f, err := radio.ParseRXLine(arg)
		if err != nil {
			return fmt.Errorf("malformed RX line: %v", err)
		}
		d, err := wire.DecodeDownlink(f.Payload, f.Port)
		if err != nil {
			return err
		}
		fmt.Print(wire.FormatDownlink(d))
		if f.HasRSSI {
			fmt.Printf("  RSSI: %d dBm\n", f.RSSI)
		}
		if f.HasSNR {
			fmt.Printf("  SNR: %.1f dB\n", f.SNR)
		}
		return nil
	}

	if decodeUplink {
		frame, err := decodeHex(arg)
		if err != nil {
			return err
		}
		u, err := wire.DecodeUplink(frame)
		if err != nil {
			return err
		}
		fmt.Print(wire.FormatUplink(u))
		return nil
	}

	d, err := wire.DecodeDownlink(strings.ReplaceAll(arg, " ", ""), 0)
	if err != nil {
		return err
	}
	fmt.Print(wire.FormatDownlink(d))
	return nil
}
