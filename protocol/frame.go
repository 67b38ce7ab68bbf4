// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

// WebSocket opcodes (RFC 6455 §5.2).
const (
	OpcodeContinuation byte = 0x0
	OpcodeText         byte = 0x1
	OpcodeBinary       byte = 0x2
	OpcodeClose        byte = 0x8
	OpcodePing         byte = 0x9
	OpcodePong         byte = 0xA
)

// MaxFramePayload caps a single frame's payload. The limit protects against
// frames large enough to exhaust memory.
const MaxFramePayload = 1 << 20 // 1 MiB

// Frame is a single WebSocket frame.
type Frame struct {
	Final   bool
	Opcode  byte
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// IsControl reports whether the opcode is a control frame.
func (f *Frame) IsControl() bool { return f.Opcode >= OpcodeClose }
