// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"strconv"
	"strings"
)

// InboundFrame is one downlink reported by the modem as
// RX:<HEXPAYLOAD>:<PORT>[:<RSSI>[:<SNR>]]
type InboundFrame struct {
	Payload string
	Port    int
	RSSI    int
	SNR     float64
	HasRSSI bool
	HasSNR  bool
	Raw     string
}

// FrameHandler receives every well formed inbound frame
type FrameHandler interface {
	HandleFrame(f InboundFrame)
}

// FrameHandlerFunc adapts a function to FrameHandler
type FrameHandlerFunc func(f InboundFrame)

// HandleFrame calls f
func (f FrameHandlerFunc) HandleFrame(frame InboundFrame) {
	f(frame)
}

// ParseRXLine extracts the frame from a line containing the RX marker.
// Payload and port are required; signal fields are optional.
func ParseRXLine(line string) (InboundFrame, error) {
	idx := strings.Index(line, MarkerRX)
	if idx < 0 {
		return InboundFrame{}, errNoMarker
	}
	raw := strings.TrimSpace(line[idx:])
	fields := strings.Split(raw[len(MarkerRX):], ":")
	if len(fields) < 2 {
		return InboundFrame{}, errMalformed
	}

	payload := strings.TrimSpace(fields[0])
	if payload == "" {
		return InboundFrame{}, errMalformed
	}
	port, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return InboundFrame{}, errMalformed
	}

	f := InboundFrame{Payload: payload, Port: port, Raw: raw}
	if len(fields) > 2 {
		if rssi, err := strconv.Atoi(strings.TrimSpace(fields[2])); err == nil {
			f.RSSI = rssi
			f.HasRSSI = true
		}
	}
	if len(fields) > 3 {
		if snr, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err == nil {
			f.SNR = snr
			f.HasSNR = true
		}
	}
	return f, nil
}

// ScanFrames returns every well formed frame in a complete response buffer
// and the number of marker lines that had to be dropped.
func ScanFrames(raw string) ([]InboundFrame, int) {
	var frames []InboundFrame
	dropped := 0
	for _, line := range SplitLines(raw) {
		f, err := ParseRXLine(line)
		switch err {
		case nil:
			frames = append(frames, f)
		case errMalformed:
			dropped++
		}
	}
	return frames, dropped
}
