// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
)

// Motion reads a PIR sensor output line, high while motion is detected
type Motion struct {
	pin gpio.PinIn
}

// NewMotion opens the named pin as an input
func NewMotion(name string) (*Motion, error) {
	p, err := openPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("motion pin %s: %w", name, err)
	}
	return &Motion{pin: p}, nil
}

// MotionActive reports whether the line is high
func (m *Motion) MotionActive() bool {
	return m.pin.Read() == gpio.High
}
