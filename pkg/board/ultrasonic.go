// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
)

// Speed of sound in cm per microsecond
const soundCmPerUs = 0.0343

// EchoTimeout bounds each edge wait of a measurement
const EchoTimeout = 30 * time.Millisecond

// Ultrasonic drives an HC-SR04 style trigger/echo ranger
type Ultrasonic struct {
	trig    gpio.PinOut
	echo    gpio.PinIn
	timeout time.Duration
}

// NewUltrasonic opens the trigger pin as an output and echo as an input
func NewUltrasonic(trigName, echoName string) (*Ultrasonic, error) {
	trig, err := openPin(trigName)
	if err != nil {
		return nil, err
	}
	echo, err := openPin(echoName)
	if err != nil {
		return nil, err
	}
	if err := trig.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("trigger pin %s: %w", trigName, err)
	}
	if err := echo.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("echo pin %s: %w", echoName, err)
	}
	return &Ultrasonic{trig: trig, echo: echo, timeout: EchoTimeout}, nil
}

// ReadDistanceCm fires one ping. ok is false when the echo never arrives or
// never ends within the timeout.
func (u *Ultrasonic) ReadDistanceCm() (float64, bool) {
	if err := u.pulse(); err != nil {
		return 0, false
	}
	if !u.waitLevel(gpio.High) {
		return 0, false
	}
	start := time.Now()
	if !u.waitLevel(gpio.Low) {
		return 0, false
	}
	return EchoToCm(time.Since(start)), true
}

func (u *Ultrasonic) pulse() error {
	if err := u.trig.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(2 * time.Microsecond)
	if err := u.trig.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(10 * time.Microsecond)
	return u.trig.Out(gpio.Low)
}

func (u *Ultrasonic) waitLevel(l gpio.Level) bool {
	deadline := time.Now().Add(u.timeout)
	for u.echo.Read() != l {
		if !time.Now().Before(deadline) {
			return false
		}
	}
	return true
}

// EchoToCm converts a round trip echo time to a distance
func EchoToCm(d time.Duration) float64 {
	us := float64(d) / float64(time.Microsecond)
	return us * soundCmPerUs / 2
}
