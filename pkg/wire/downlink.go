// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"encoding/hex"
	"strings"
)

// Downlink is a validated user management command
type Downlink struct {
	Op   byte
	UID  [UIDSize]byte
	Role Role // InsertUser only
	Port int
}

// Tag returns the UID in authorization store key format
func (d Downlink) Tag() string {
	return FormatTag(d.UID[:])
}

// DecodeDownlink decodes the hex payload of an RX line.
// It never guesses: odd hex, an unknown opcode, a length that does not match
// the opcode or a role outside {Worker, Admin} all reject the frame.
func DecodeDownlink(hexPayload string, port int) (Downlink, error) {
	var d Downlink
	hexPayload = strings.TrimSpace(hexPayload)
	if len(hexPayload)%2 != 0 {
		return d, codecErrorf(ErrKindHex, "odd hex length %d", len(hexPayload))
	}
	data, err := hex.DecodeString(hexPayload)
	if err != nil {
		return d, codecErrorf(ErrKindHex, "%v", err)
	}
	if len(data) == 0 {
		return d, codecErrorf(ErrKindEmpty, "empty downlink")
	}

	size := downlinkSize(data[0])
	if size == 0 {
		return d, codecErrorf(ErrKindOpcode, "unknown downlink opcode 0x%02X", data[0])
	}
	if len(data) != size {
		return d, codecErrorf(ErrKindLength, "downlink 0x%02X is %d bytes (want %d)", data[0], len(data), size)
	}

	d.Op = data[0]
	d.Port = port
	copy(d.UID[:], data[1:5])
	if d.Op == OpInsertUser {
		d.Role = Role(data[5])
		if !d.Role.Valid() {
			return Downlink{}, codecErrorf(ErrKindRole, "invalid role 0x%02X", data[5])
		}
	}
	return d, nil
}

// EncodeInsertUser builds an InsertUser downlink. Used by bench tooling and tests.
func EncodeInsertUser(uid [UIDSize]byte, role Role) []byte {
	frame := make([]byte, InsertUserSize)
	frame[0] = OpInsertUser
	copy(frame[1:5], uid[:])
	frame[5] = byte(role)
	return frame
}

// EncodeDeleteUser builds a DeleteUser downlink
func EncodeDeleteUser(uid [UIDSize]byte) []byte {
	frame := make([]byte, DeleteUserSize)
	frame[0] = OpDeleteUser
	copy(frame[1:5], uid[:])
	return frame
}
