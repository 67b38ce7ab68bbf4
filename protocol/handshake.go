// File: protocol/handshake.go
// Package protocol
// Client-side WebSocket handshake: key generation, upgrade request
// serialization, and Sec-WebSocket-Accept validation.
// Author: momentics <momentics@gmail.com>

package protocol

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const (
	// WebSocketGUID is the fixed GUID of RFC 6455 §1.3.
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	RequiredWebSocketVersion = "13"
)

var (
	ErrBadAccept      = fmt.Errorf("Sec-WebSocket-Accept mismatch")
	ErrUpgradeRefused = fmt.Errorf("server refused the upgrade")
)

// NewKey generates a Sec-WebSocket-Key value: 16 random bytes, base64.
func NewKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("handshake key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// AcceptFor computes the Sec-WebSocket-Accept value the server must echo.
func AcceptFor(key string) string {
	h := sha1.New()
	h.Write([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyAccept checks the server's accept header against the sent key.
func VerifyAccept(key, accept string) error {
	if AcceptFor(key) != accept {
		return ErrBadAccept
	}
	return nil
}

// UpgradeWire serializes the upgrade GET request for the given ws target.
func UpgradeWire(u *url.URL, key string, extra http.Header) []byte {
	target := u.RequestURI()
	if target == "" {
		target = "/"
	}

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(target)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(u.Host)
	b.WriteString("\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString(HeaderSecWebSocketKey + ": ")
	b.WriteString(key)
	b.WriteString("\r\n")
	b.WriteString(HeaderSecWebSocketVer + ": " + RequiredWebSocketVersion + "\r\n")

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ck := http.CanonicalHeaderKey(k)
		switch ck {
		case "Host", "Upgrade", "Connection",
			HeaderSecWebSocketKey, HeaderSecWebSocketVer:
			continue
		}
		for _, v := range extra[k] {
			b.WriteString(ck)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
