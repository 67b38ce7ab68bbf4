// File: engine/response_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-requests/api"
)

func feedAll(t *testing.T, p *responseParser, raw string, chunk int) (bool, error) {
	t.Helper()
	var done bool
	var err error
	for i := 0; i < len(raw) && err == nil && !done; i += chunk {
		end := i + chunk
		if end > len(raw) {
			end = len(raw)
		}
		done, err = p.feed([]byte(raw[i:end]))
	}
	return done, err
}

func TestParseContentLengthBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	// Feed byte by byte to exercise every partial-input path.
	p := newResponseParser(1<<20, false, false)
	done, err := feedAll(t, &p, raw, 1)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, 200, p.status)
	assert.Equal(t, "HTTP/1.1", p.proto)
	assert.Equal(t, "OK", p.reason)
	assert.Equal(t, "text/plain", p.header.Get("Content-Type"))
	assert.Equal(t, "hello", string(p.body))
}

func TestParseChunkedBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\nX-Trailer: ignored\r\n\r\n"
	p := newResponseParser(1<<20, false, false)
	done, err := feedAll(t, &p, raw, 3)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, "Wikipedia", string(p.body))
}

func TestParseBodyUntilClose(t *testing.T) {
	raw := "HTTP/1.0 200 OK\r\n\r\npartial stream"
	p := newResponseParser(1<<20, false, false)
	done, err := feedAll(t, &p, raw, 7)
	require.NoError(t, err)
	require.False(t, done, "close-delimited body is only complete at EOF")

	done, err = p.feedEOF()
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, "partial stream", string(p.body))
}

func TestParseNoContent(t *testing.T) {
	raw := "HTTP/1.1 204 No Content\r\n\r\n"
	p := newResponseParser(1<<20, false, false)
	done, err := p.feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
	assert.Empty(t, p.body)
}

func TestParseHeadResponseIgnoresContentLength(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 1024\r\n\r\n"
	p := newResponseParser(1<<20, true, false)
	done, err := p.feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
	assert.Empty(t, p.body)
}

func TestParseSkipsInterimResponses(t *testing.T) {
	raw := "HTTP/1.1 100 Continue\r\n\r\n" +
		"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
	p := newResponseParser(1<<20, false, false)
	done, err := feedAll(t, &p, raw, 9)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, 200, p.status)
	assert.Equal(t, "ok", string(p.body))
}

func TestParseUpgradeKeepsLeftover(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n\r\n\x81\x02hi"
	p := newResponseParser(1<<20, false, true)
	done, err := p.feed([]byte(raw))
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, 101, p.status)
	assert.Equal(t, []byte{0x81, 0x02, 'h', 'i'}, p.leftover)
}

func TestParseResponseTooLarge(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n"
	p := newResponseParser(10, false, false)
	_, err := p.feed([]byte(raw))
	assert.ErrorIs(t, err, api.ErrResponseTooLarge)
}

func TestParseTruncatedLengthBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc"
	p := newResponseParser(1<<20, false, false)
	done, err := p.feed([]byte(raw))
	require.NoError(t, err)
	require.False(t, done)

	_, err = p.feedEOF()
	assert.Error(t, err)
}

func TestParseMalformedStatusLine(t *testing.T) {
	p := newResponseParser(1<<20, false, false)
	_, err := p.feed([]byte("ICY 200 OK\r\n\r\n"))
	assert.Error(t, err)
}
