// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wire implements the binwarden radio payload formats.
//
// Every frame starts with an opcode byte and has a fixed length determined by
// that opcode. Uplinks travel device to backend, downlinks backend to device.
// Frames are hex encoded by the radio modem, never by this package except for
// downlink decoding, which receives the hex text straight from the modem.
package wire

// Uplink opcodes (device → backend)
const (
	OpWorkerCleanup = 0x01
	OpHourlyReport  = 0x02
)

// Downlink opcodes (backend → device)
const (
	OpInsertUser = 0x01
	OpDeleteUser = 0x02
)

// Frame sizes, including the opcode byte
const (
	WorkerCleanupSize = 11 // op + name(6) + uid(4)
	HourlyReportSize  = 9  // op + name(6) + fill + usage
	InsertUserSize    = 6  // op + uid(4) + role
	DeleteUserSize    = 5  // op + uid(4)
)

// Field sizes
const (
	DeviceNameSize = 6
	UIDSize        = 4
)

// FillUnknown is reported in place of a fill percentage when the distance
// sensor produced no reading.
const FillUnknown = 0xFF

// Role is the access role carried by an InsertUser downlink
type Role uint8

// Role values
const (
	RoleWorker Role = 0x01
	RoleAdmin  Role = 0x02
)

// String returns the role name stored by the authorization store
func (r Role) String() string {
	switch r {
	case RoleWorker:
		return "WORKER"
	case RoleAdmin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether r is a role the device accepts
func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleAdmin
}

// ParseRole converts a stored role name back into a Role
func ParseRole(s string) (Role, bool) {
	switch s {
	case "WORKER":
		return RoleWorker, true
	case "ADMIN":
		return RoleAdmin, true
	}
	return 0, false
}

// uplinkSize returns the fixed frame size for an uplink opcode, or 0
func uplinkSize(op byte) int {
	switch op {
	case OpWorkerCleanup:
		return WorkerCleanupSize
	case OpHourlyReport:
		return HourlyReportSize
	}
	return 0
}

// downlinkSize returns the fixed frame size for a downlink opcode, or 0
func downlinkSize(op byte) int {
	switch op {
	case OpInsertUser:
		return InsertUserSize
	case OpDeleteUser:
		return DeleteUserSize
	}
	return 0
}
