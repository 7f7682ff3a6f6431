// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"fmt"
	"time"
)

// Statistics tracks modem transactions and captured downlinks
type Statistics struct {
	StartTime time.Time

	// Counters
	Commands       uint64
	Acks           uint64
	Timeouts       uint64
	ModemErrors    uint64
	JoinAttempts   uint64
	FramesCaptured uint64
	FramesDropped  uint64
	ReadErrors     uint64
	BytesRead      uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// AckRate returns the share of commands that were acknowledged, in percent
func (s *Statistics) AckRate() float64 {
	if s.Commands == 0 {
		return 0
	}
	return float64(s.Acks) * 100.0 / float64(s.Commands)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands:        %8d\n", s.Commands)
	result += fmt.Sprintf("Acknowledged:    %8d (%.1f%%)\n", s.Acks, s.AckRate())

	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.ModemErrors > 0 {
		result += fmt.Sprintf("Modem Errors:    %8d\n", s.ModemErrors)
	}
	if s.JoinAttempts > 0 {
		result += fmt.Sprintf("Join Attempts:   %8d\n", s.JoinAttempts)
	}

	result += fmt.Sprintf("Frames Captured: %8d\n", s.FramesCaptured)
	if s.FramesDropped > 0 {
		result += fmt.Sprintf("Frames Dropped:  %8d\n", s.FramesDropped)
	}
	if s.ReadErrors > 0 {
		result += fmt.Sprintf("Read Errors:     %8d\n", s.ReadErrors)
	}
	result += fmt.Sprintf("Bytes Read:      %8d\n", s.BytesRead)
	result += "====================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = Statistics{StartTime: time.Now()}
}
