// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cycle

import "github.com/Thermoquad/binwarden/pkg/wire"

// FillPercent maps a distance reading to a fill level. A full bin reads 0cm,
// an empty one reads emptyDepthCm. A negative distance is a failed reading and
// maps to wire.FillUnknown.
func FillPercent(distanceCm, emptyDepthCm float64) uint8 {
	if distanceCm < 0 || emptyDepthCm <= 0 {
		return wire.FillUnknown
	}
	fill := (emptyDepthCm - distanceCm) / emptyDepthCm * 100
	switch {
	case fill <= 0:
		return 0
	case fill >= 100:
		return 100
	}
	return uint8(fill)
}
