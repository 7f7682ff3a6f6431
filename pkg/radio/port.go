// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package radio drives a LoRaWAN modem over its line oriented AT command set.
//
// The Engine owns the serial channel exclusively and runs one transaction at a
// time. Every byte read from the modem, whether inside a transaction or while
// idle, is scanned for asynchronous "RX:" downlink lines which are handed to a
// FrameHandler.
package radio

import (
	"io"
	"time"
)

// Port is the serial channel to the modem. A Read that times out returns
// 0 bytes and a nil error, matching go.bug.st/serial.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

// AT command set
const (
	CmdProbe = "AT"
	CmdJoin  = "AT+JOIN"
	CmdSend  = "AT+SENDB"

	lineEnding = "\r\n"
)

// Response tokens
const (
	TokenOK          = "OK"
	TokenError       = "ERROR"
	TokenJoined      = "JOINED"
	TokenJoinSuccess = "Join Success"
	TokenJoinFailed  = "Join Failed"
	MarkerRX         = "RX:"
)

// Session is the join state of the modem for the current boot
type Session int

const (
	SessionUnjoined Session = iota
	SessionJoining
	SessionJoined
)

// String returns the session name
func (s Session) String() string {
	switch s {
	case SessionUnjoined:
		return "unjoined"
	case SessionJoining:
		return "joining"
	case SessionJoined:
		return "joined"
	default:
		return "unknown"
	}
}
