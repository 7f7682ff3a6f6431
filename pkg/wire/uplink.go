// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

// DeviceName is the fixed six byte bin identifier carried by every uplink
type DeviceName [DeviceNameSize]byte

// ParseDeviceName validates a configured name. The name must be exactly six
// bytes; it is never padded or truncated.
func ParseDeviceName(s string) (DeviceName, error) {
	var name DeviceName
	if len(s) != DeviceNameSize {
		return name, codecErrorf(ErrKindName, "device name %q is %d bytes (want %d)", s, len(s), DeviceNameSize)
	}
	copy(name[:], s)
	return name, nil
}

// String returns the name as text
func (n DeviceName) String() string {
	return string(n[:])
}

// Uplink is a decoded uplink frame
type Uplink struct {
	Op    byte
	Name  DeviceName
	Fill  uint8         // HourlyReport only
	Usage uint8         // HourlyReport only
	UID   [UIDSize]byte // WorkerCleanup only
}

// EncodeHourlyReport builds the 9 byte status report.
// fill and usage are written as given; callers clamp them first.
func EncodeHourlyReport(name DeviceName, fill, usage uint8) []byte {
	frame := make([]byte, HourlyReportSize)
	frame[0] = OpHourlyReport
	copy(frame[1:7], name[:])
	frame[7] = fill
	frame[8] = usage
	return frame
}

// EncodeWorkerCleanup builds the 11 byte cleanup notification
func EncodeWorkerCleanup(name DeviceName, uid [UIDSize]byte) []byte {
	frame := make([]byte, WorkerCleanupSize)
	frame[0] = OpWorkerCleanup
	copy(frame[1:7], name[:])
	copy(frame[7:11], uid[:])
	return frame
}

// ValidateUplink checks that frame has exactly the length its opcode demands
func ValidateUplink(frame []byte) error {
	if len(frame) == 0 {
		return codecErrorf(ErrKindEmpty, "empty uplink")
	}
	size := uplinkSize(frame[0])
	if size == 0 {
		return codecErrorf(ErrKindOpcode, "unknown uplink opcode 0x%02X", frame[0])
	}
	if len(frame) != size {
		return codecErrorf(ErrKindLength, "uplink 0x%02X is %d bytes (want %d)", frame[0], len(frame), size)
	}
	return nil
}

// DecodeUplink parses a raw uplink frame
func DecodeUplink(frame []byte) (Uplink, error) {
	var up Uplink
	if err := ValidateUplink(frame); err != nil {
		return up, err
	}
	up.Op = frame[0]
	copy(up.Name[:], frame[1:7])
	switch up.Op {
	case OpHourlyReport:
		up.Fill = frame[7]
		up.Usage = frame[8]
	case OpWorkerCleanup:
		copy(up.UID[:], frame[7:11])
	}
	return up, nil
}
