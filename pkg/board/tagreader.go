// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package board

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Reader frame: [0x02][len][type][uid...][xor][0x03]. len is the total
// frame size, 0x09 for the usual 4 byte UID and up to 0x0F for 10 bytes.
// The checksum covers the length byte through the last UID byte.
const (
	tagFrameStart    = 0x02
	tagFrameEnd      = 0x03
	tagFrameOverhead = 5
	tagFrameMinSize  = tagFrameOverhead + 4
	tagFrameMaxSize  = tagFrameOverhead + 10
	tagBufferLimit   = 256
)

// TagHoldoff suppresses repeats of a card left on the reader
const TagHoldoff = 2 * time.Second

// ParseTagFrame finds the first valid frame in buf. It returns the UID and the
// unconsumed tail. Garbage before a frame is skipped; a truncated frame is
// kept in the tail.
func ParseTagFrame(buf []byte) (uid []byte, rest []byte, ok bool) {
	for {
		i := bytes.IndexByte(buf, tagFrameStart)
		if i < 0 {
			return nil, nil, false
		}
		buf = buf[i:]
		if len(buf) < 2 {
			return nil, buf, false
		}

		size := int(buf[1])
		if size < tagFrameMinSize || size > tagFrameMaxSize {
			buf = buf[1:]
			continue
		}
		if len(buf) < size {
			return nil, buf, false
		}

		frame := buf[:size]
		if frame[size-1] == tagFrameEnd {
			sum := frame[1]
			for _, b := range frame[2 : size-2] {
				sum ^= b
			}
			if sum == frame[size-2] {
				uid = append([]byte(nil), frame[3:size-2]...)
				return uid, buf[size:], true
			}
		}
		buf = buf[1:]
	}
}

// SerialTagReader polls a serial RFID reader
type SerialTagReader struct {
	port    io.ReadCloser
	buf     []byte
	chunk   []byte
	last    []byte
	lastAt  time.Time
	holdoff time.Duration
}

// NewTagReader wraps an open reader port. Reads must return promptly.
func NewTagReader(port io.ReadCloser) *SerialTagReader {
	return &SerialTagReader{port: port, chunk: make([]byte, 64), holdoff: TagHoldoff}
}

// OpenSerialTagReader opens the reader at portName
func OpenSerialTagReader(portName string, baud int) (*SerialTagReader, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open RFID reader %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set RFID read timeout: %w", err)
	}
	return NewTagReader(port), nil
}

// PollTag returns a newly presented UID. Frames already buffered are
// consumed first; it performs at most one short read.
func (r *SerialTagReader) PollTag() ([]byte, bool) {
	read := false
	for {
		uid, ok := r.take()
		if !ok {
			if read || !r.fill() {
				return nil, false
			}
			read = true
			continue
		}

		now := time.Now()
		if bytes.Equal(uid, r.last) && now.Sub(r.lastAt) < r.holdoff {
			r.lastAt = now
			continue
		}
		r.last, r.lastAt = uid, now
		return uid, true
	}
}

// fill does one read into the frame buffer
func (r *SerialTagReader) fill() bool {
	n, err := r.port.Read(r.chunk)
	if err != nil || n == 0 {
		return false
	}
	r.buf = append(r.buf, r.chunk[:n]...)
	if len(r.buf) > tagBufferLimit {
		r.buf = append(r.buf[:0], r.buf[len(r.buf)-tagBufferLimit:]...)
	}
	return true
}

func (r *SerialTagReader) take() ([]byte, bool) {
	uid, rest, ok := ParseTagFrame(r.buf)
	r.buf = append(r.buf[:0], rest...)
	return uid, ok
}

// Close closes the serial port
func (r *SerialTagReader) Close() error {
	return r.port.Close()
}
