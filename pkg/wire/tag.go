// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"fmt"
	"strings"
)

// FormatTag renders a tag UID as space separated uppercase hex ("04 A1 B2 C3").
// Both the RFID reader path and the downlink path key the authorization store
// with this format.
func FormatTag(uid []byte) string {
	var sb strings.Builder
	for i, b := range uid {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
