// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Binwarden - LoRaWAN waste bin monitor
//
// Reports fill level and usage over a LoRaWAN modem, admits workers by RFID
// tag, and applies authorization changes pushed down from the network.

package main

import (
	"os"

	"github.com/Thermoquad/binwarden/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
