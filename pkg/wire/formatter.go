// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"fmt"
	"strings"
)

// FormatUplinkOp returns the human-readable name for an uplink opcode
func FormatUplinkOp(op byte) string {
	switch op {
	case OpWorkerCleanup:
		return "WORKER_CLEANUP"
	case OpHourlyReport:
		return "HOURLY_REPORT"
	default:
		return "UNKNOWN"
	}
}

// FormatDownlinkOp returns the human-readable name for a downlink opcode
func FormatDownlinkOp(op byte) string {
	switch op {
	case OpInsertUser:
		return "INSERT_USER"
	case OpDeleteUser:
		return "DELETE_USER"
	default:
		return "UNKNOWN"
	}
}

// FormatFill renders a fill byte, showing the error sentinel explicitly
func FormatFill(fill uint8) string {
	if fill == FillUnknown {
		return "error"
	}
	return fmt.Sprintf("%d%%", fill)
}

// FormatUplink formats a decoded uplink into a human-readable string
func FormatUplink(u Uplink) string {
	result := fmt.Sprintf("%s (0x%02X) name=%s\n", FormatUplinkOp(u.Op), u.Op, u.Name)
	switch u.Op {
	case OpHourlyReport:
		result += fmt.Sprintf("  Fill: %s, Usage: %d\n", FormatFill(u.Fill), u.Usage)
	case OpWorkerCleanup:
		result += fmt.Sprintf("  Worker: %s\n", FormatTag(u.UID[:]))
	}
	return result
}

// FormatDownlink formats a decoded downlink into a human-readable string
func FormatDownlink(d Downlink) string {
	result := fmt.Sprintf("%s (0x%02X) port=%d\n", FormatDownlinkOp(d.Op), d.Op, d.Port)
	result += fmt.Sprintf("  Tag: %s\n", d.Tag())
	if d.Op == OpInsertUser {
		result += fmt.Sprintf("  Role: %s (0x%02X)\n", d.Role, byte(d.Role))
	}
	return result
}

// FormatHex renders bytes as spaced hex, 16 per line
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n")
		} else if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
