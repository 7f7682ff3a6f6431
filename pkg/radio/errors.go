// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import "errors"

var (
	// ErrTimeout means no terminating token arrived before the command timeout
	ErrTimeout = errors.New("radio: timeout waiting for modem response")
	// ErrModem means the modem answered ERROR
	ErrModem = errors.New("radio: modem returned ERROR")
	// ErrJoinFailed means every join attempt was exhausted
	ErrJoinFailed = errors.New("radio: join failed")
	// ErrNotJoined means a send was requested without a joined session
	ErrNotJoined = errors.New("radio: not joined")

	errNoMarker  = errors.New("radio: no RX marker")
	errMalformed = errors.New("radio: malformed RX line")
)
