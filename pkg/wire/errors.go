// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "fmt"

// ErrorKind classifies codec failures
type ErrorKind int

const (
	ErrKindHex ErrorKind = iota
	ErrKindEmpty
	ErrKindOpcode
	ErrKindLength
	ErrKindRole
	ErrKindName
)

// String returns a short name for the kind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindHex:
		return "hex"
	case ErrKindEmpty:
		return "empty"
	case ErrKindOpcode:
		return "opcode"
	case ErrKindLength:
		return "length"
	case ErrKindRole:
		return "role"
	case ErrKindName:
		return "name"
	default:
		return "unknown"
	}
}

// CodecError is returned for every frame the codec refuses
type CodecError struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface
func (e *CodecError) Error() string {
	return fmt.Sprintf("wire: %s: %s", e.Kind, e.Message)
}

func codecErrorf(kind ErrorKind, format string, args ...interface{}) *CodecError {
	return &CodecError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
