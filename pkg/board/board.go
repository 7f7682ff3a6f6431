// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package board binds the cycle collaborators to Linux hardware: GPIO through
// periph, the RFID reader on a serial port, and suspend through sysfs.
package board

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Init loads the periph host drivers. Call it once before opening pins.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host.Init: %w", err)
	}
	return nil
}

func openPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin <%s> not found", name)
	}
	return p, nil
}
