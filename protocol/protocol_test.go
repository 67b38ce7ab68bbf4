// File: protocol/protocol_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bufio"
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptForKnownVector(t *testing.T) {
	// The example handshake from RFC 6455 §1.2.
	accept := AcceptFor("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", accept)
}

func TestVerifyAccept(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	require.NoError(t, VerifyAccept(key, AcceptFor(key)))
	assert.ErrorIs(t, VerifyAccept(key, "bogus"), ErrBadAccept)
}

func TestNewKeyUnique(t *testing.T) {
	a, err := NewKey()
	require.NoError(t, err)
	b, err := NewKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 24) // 16 bytes, base64
}

func TestUpgradeWire(t *testing.T) {
	u, err := url.Parse("ws://example.com:9000/feed?room=a")
	require.NoError(t, err)
	extra := http.Header{}
	extra.Set("Origin", "http://example.com")
	extra.Set("Connection", "close") // must not override the upgrade plumbing

	wire := string(UpgradeWire(u, "testkey==", extra))
	lines := strings.Split(wire, "\r\n")
	assert.Equal(t, "GET /feed?room=a HTTP/1.1", lines[0])
	assert.Contains(t, lines, "Host: example.com:9000")
	assert.Contains(t, lines, "Upgrade: websocket")
	assert.Contains(t, lines, "Connection: Upgrade")
	assert.Contains(t, lines, "Sec-WebSocket-Key: testkey==")
	assert.Contains(t, lines, "Sec-WebSocket-Version: 13")
	assert.Contains(t, lines, "Origin: http://example.com")
	assert.NotContains(t, lines, "Connection: close")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\n"))
}

func TestFrameRoundTripUnmasked(t *testing.T) {
	raw, err := EncodeFrame(&Frame{Final: true, Opcode: OpcodeText, Payload: []byte("hello")}, false)
	require.NoError(t, err)

	f, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.True(t, f.Final)
	assert.Equal(t, OpcodeText, f.Opcode)
	assert.Equal(t, "hello", string(f.Payload))
}

func TestMaskedFrameIsOpaqueOnTheWire(t *testing.T) {
	payload := []byte("sensitive")
	raw, err := EncodeFrame(&Frame{Final: true, Opcode: OpcodeBinary, Payload: payload}, true)
	require.NoError(t, err)

	assert.NotZero(t, raw[1]&0x80, "mask bit must be set")
	assert.NotContains(t, string(raw), string(payload), "masked payload must not appear verbatim")

	// A reader in the server role rejects masked input; clients never
	// receive their own masking back.
	_, err = ReadFrame(bufio.NewReader(bytes.NewReader(raw)))
	assert.ErrorIs(t, err, ErrMaskedServerFrame)
}

func TestExtendedLengthEncoding(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 300)
	raw, err := EncodeFrame(&Frame{Final: true, Opcode: OpcodeBinary, Payload: payload}, false)
	require.NoError(t, err)
	assert.Equal(t, byte(126), raw[1]&0x7F)

	f, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	assert.Len(t, f.Payload, 300)
}

func TestOversizeFrameRejected(t *testing.T) {
	_, err := EncodeFrame(&Frame{
		Final: true, Opcode: OpcodeBinary, Payload: make([]byte, MaxFramePayload+1),
	}, false)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestMalformedControlFrameRejected(t *testing.T) {
	// A non-final ping is a protocol violation.
	raw := []byte{0x09, 0x00}
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)))
	assert.Error(t, err)
}

func TestContextRejectsBadTargets(t *testing.T) {
	_, err := NewContext("wss://example.com/", nil, nil, zerolog.Nop())
	assert.Error(t, err, "TLS targets are outside this engine")

	_, err = NewContext("http://example.com/", nil, nil, zerolog.Nop())
	assert.Error(t, err)
}
