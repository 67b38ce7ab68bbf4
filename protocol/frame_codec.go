// File: protocol/frame_codec.go
// Package protocol implements the frame codec with payload size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client role: every egress frame is masked with a fresh random key, ingress
// frames from the server must arrive unmasked.

package protocol

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrFrameTooLarge marks a frame payload over MaxFramePayload.
	ErrFrameTooLarge = errors.New("frame payload exceeds maximum allowed size")
	// ErrMaskedServerFrame marks a protocol violation: servers must not mask.
	ErrMaskedServerFrame = errors.New("received masked frame from server")
)

// ReadFrame reads one complete frame from r, enforcing the payload limit.
func ReadFrame(r *bufio.Reader) (*Frame, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	f := &Frame{
		Final:  head[0]&0x80 != 0,
		Opcode: head[0] & 0x0F,
		Masked: head[1]&0x80 != 0,
	}
	if f.Masked {
		return nil, ErrMaskedServerFrame
	}

	length := int64(head[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		length = int64(binary.BigEndian.Uint64(ext[:]))
	}
	if length > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}
	if f.IsControl() && (length > 125 || !f.Final) {
		return nil, fmt.Errorf("malformed control frame: len=%d final=%v", length, f.Final)
	}

	f.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeFrame serializes a frame for the wire. When mask is set a fresh
// random masking key is applied, as required of clients.
func EncodeFrame(f *Frame, mask bool) ([]byte, error) {
	length := len(f.Payload)
	if length > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}

	out := make([]byte, 0, 14+length)
	b0 := f.Opcode
	if f.Final {
		b0 |= 0x80
	}
	out = append(out, b0)

	var b1 byte
	if mask {
		b1 = 0x80
	}
	switch {
	case length < 126:
		out = append(out, b1|byte(length))
	case length <= 0xFFFF:
		out = append(out, b1|126)
		out = binary.BigEndian.AppendUint16(out, uint16(length))
	default:
		out = append(out, b1|127)
		out = binary.BigEndian.AppendUint64(out, uint64(length))
	}

	if !mask {
		return append(out, f.Payload...), nil
	}

	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("masking key: %w", err)
	}
	out = append(out, key[:]...)
	start := len(out)
	out = append(out, f.Payload...)
	for i := range out[start:] {
		out[start+i] ^= key[i%4]
	}
	return out, nil
}
