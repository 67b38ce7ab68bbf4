// File: protocol/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn wraps the descriptor detached from a successful upgrade transfer.
// Unlike the transfers that produced it, the connection is synchronous: the
// host owns it outright and reads/writes it from its own code.

package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// ErrClosed is returned once the peer has sent a close frame.
var ErrClosed = errors.New("websocket connection closed")

// Conn is an established client-side WebSocket connection.
type Conn struct {
	f   *os.File
	br  *bufio.Reader
	wmu sync.Mutex
	log zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// newConn takes ownership of a detached descriptor. leftover holds any bytes
// that arrived with the handshake response and belong to the frame stream.
func newConn(fd int, leftover []byte, log zerolog.Logger) (*Conn, error) {
	if err := setBlocking(fd); err != nil {
		return nil, fmt.Errorf("restore blocking mode: %w", err)
	}
	f := os.NewFile(uintptr(fd), "websocket")
	var src io.Reader = f
	if len(leftover) > 0 {
		src = io.MultiReader(bytes.NewReader(leftover), f)
	}
	return &Conn{
		f:   f,
		br:  bufio.NewReader(src),
		log: log.With().Str("component", "websocket").Logger(),
	}, nil
}

// ReadMessage blocks until a complete data message arrives. Pings are
// answered transparently; a close frame is echoed and reported as ErrClosed.
func (c *Conn) ReadMessage() (opcode byte, payload []byte, err error) {
	var assembled []byte
	var firstOpcode byte

	for {
		f, err := ReadFrame(c.br)
		if err != nil {
			return 0, nil, err
		}

		switch f.Opcode {
		case OpcodePing:
			if err := c.writeFrame(OpcodePong, f.Payload); err != nil {
				return 0, nil, err
			}
			continue
		case OpcodePong:
			continue
		case OpcodeClose:
			c.log.Debug().Msg("close frame received")
			_ = c.writeFrame(OpcodeClose, f.Payload)
			return 0, nil, ErrClosed
		case OpcodeContinuation:
			if assembled == nil {
				return 0, nil, fmt.Errorf("continuation frame without a message")
			}
			assembled = append(assembled, f.Payload...)
		case OpcodeText, OpcodeBinary:
			if assembled != nil {
				return 0, nil, fmt.Errorf("interleaved data message")
			}
			firstOpcode = f.Opcode
			assembled = append([]byte(nil), f.Payload...)
		default:
			return 0, nil, fmt.Errorf("unknown opcode %#x", f.Opcode)
		}

		if f.Final && assembled != nil {
			return firstOpcode, assembled, nil
		}
	}
}

// WriteMessage sends one data message as a single masked frame.
func (c *Conn) WriteMessage(opcode byte, payload []byte) error {
	if opcode != OpcodeText && opcode != OpcodeBinary {
		return fmt.Errorf("opcode %#x is not a data opcode", opcode)
	}
	return c.writeFrame(opcode, payload)
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	raw, err := EncodeFrame(&Frame{Final: true, Opcode: opcode, Payload: payload}, true)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.f.Write(raw); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close sends a best-effort close frame and releases the descriptor.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.writeFrame(OpcodeClose, nil)
		c.closeErr = c.f.Close()
	})
	return c.closeErr
}
