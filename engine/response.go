// File: engine/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental HTTP/1.1 response parser. Fed raw bytes as they arrive on a
// non-blocking socket; never reads from the network itself. Supports
// Content-Length, chunked and close-delimited bodies, skips interim 1xx
// responses, and stops after the header block for 101 upgrades so the
// remaining bytes stay with the upgraded stream.

package engine

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/momentics/hioload-requests/api"
)

const maxHeaderBytes = 64 << 10

type bodyMode int

const (
	bodyNone bodyMode = iota
	bodyLength
	bodyChunked
	bodyUntilClose
)

type chunkPhase int

const (
	chunkSize chunkPhase = iota
	chunkData
	chunkDataCRLF
	chunkTrailer
)

type responseParser struct {
	maxSize int64
	noBody  bool
	upgrade bool

	in          []byte
	headersDone bool
	done        bool

	status int
	proto  string
	reason string
	header http.Header

	mode      bodyMode
	remaining int64
	body      []byte
	leftover  []byte

	phase     chunkPhase
	chunkLeft int64
}

func newResponseParser(maxSize int64, noBody, upgrade bool) responseParser {
	return responseParser{maxSize: maxSize, noBody: noBody, upgrade: upgrade}
}

// feed consumes data and reports whether the response message is complete.
func (p *responseParser) feed(data []byte) (bool, error) {
	if p.done {
		return true, nil
	}
	p.in = append(p.in, data...)

	for {
		if !p.headersDone {
			advanced, err := p.consumeHeaders()
			if err != nil {
				return false, err
			}
			if !advanced {
				return false, nil // need more header bytes
			}
			if p.done {
				return true, nil
			}
			continue
		}
		return p.consumeBody()
	}
}

// feedEOF signals that the peer closed the connection.
func (p *responseParser) feedEOF() (bool, error) {
	if p.done {
		return true, nil
	}
	if p.headersDone && p.mode == bodyUntilClose {
		p.done = true
		return true, nil
	}
	return false, fmt.Errorf("response truncated: %w", io.ErrUnexpectedEOF)
}

func (p *responseParser) consumeHeaders() (bool, error) {
	idx := bytes.Index(p.in, []byte("\r\n\r\n"))
	if idx < 0 {
		if len(p.in) > maxHeaderBytes {
			return false, fmt.Errorf("response header block exceeds %d bytes", maxHeaderBytes)
		}
		return false, nil
	}
	block := p.in[:idx+4]
	rest := p.in[idx+4:]

	status, proto, reason, header, err := parseHeaderBlock(block)
	if err != nil {
		return false, err
	}

	// Interim responses carry no body; keep parsing for the final one.
	// A 101 during an upgrade is terminal for this parser.
	if status >= 100 && status < 200 && !(p.upgrade && status == http.StatusSwitchingProtocols) {
		p.in = rest
		return true, nil
	}

	p.status, p.proto, p.reason, p.header = status, proto, reason, header
	p.headersDone = true
	p.in = rest

	switch {
	case p.upgrade && status == http.StatusSwitchingProtocols:
		p.leftover = append([]byte(nil), rest...)
		p.in = nil
		p.done = true
		return true, nil
	case p.noBody || status == http.StatusNoContent || status == http.StatusNotModified:
		p.mode = bodyNone
		p.done = true
		return true, nil
	case hasChunkedEncoding(header):
		p.mode = bodyChunked
		p.phase = chunkSize
	case header.Get("Content-Length") != "":
		n, err := strconv.ParseInt(strings.TrimSpace(header.Get("Content-Length")), 10, 64)
		if err != nil || n < 0 {
			return false, fmt.Errorf("bad Content-Length %q", header.Get("Content-Length"))
		}
		if n > p.maxSize {
			return false, api.ErrResponseTooLarge
		}
		p.mode = bodyLength
		p.remaining = n
		if n == 0 {
			p.done = true
			return true, nil
		}
	default:
		p.mode = bodyUntilClose
	}
	return true, nil
}

func (p *responseParser) consumeBody() (bool, error) {
	switch p.mode {
	case bodyLength:
		take := int64(len(p.in))
		if take > p.remaining {
			take = p.remaining
		}
		p.body = append(p.body, p.in[:take]...)
		p.in = p.in[take:]
		p.remaining -= take
		if p.remaining == 0 {
			p.done = true
		}
		return p.done, nil
	case bodyUntilClose:
		if int64(len(p.body)+len(p.in)) > p.maxSize {
			return false, api.ErrResponseTooLarge
		}
		p.body = append(p.body, p.in...)
		p.in = nil
		return false, nil
	case bodyChunked:
		return p.consumeChunked()
	default:
		p.done = true
		return true, nil
	}
}

func (p *responseParser) consumeChunked() (bool, error) {
	for {
		switch p.phase {
		case chunkSize:
			idx := bytes.Index(p.in, []byte("\r\n"))
			if idx < 0 {
				return false, nil
			}
			line := string(p.in[:idx])
			p.in = p.in[idx+2:]
			if semi := strings.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi] // drop chunk extensions
			}
			size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
			if err != nil || size < 0 {
				return false, fmt.Errorf("bad chunk size %q", line)
			}
			if size == 0 {
				p.phase = chunkTrailer
				continue
			}
			if int64(len(p.body))+size > p.maxSize {
				return false, api.ErrResponseTooLarge
			}
			p.chunkLeft = size
			p.phase = chunkData
		case chunkData:
			take := int64(len(p.in))
			if take > p.chunkLeft {
				take = p.chunkLeft
			}
			p.body = append(p.body, p.in[:take]...)
			p.in = p.in[take:]
			p.chunkLeft -= take
			if p.chunkLeft > 0 {
				return false, nil
			}
			p.phase = chunkDataCRLF
		case chunkDataCRLF:
			if len(p.in) < 2 {
				return false, nil
			}
			if p.in[0] != '\r' || p.in[1] != '\n' {
				return false, fmt.Errorf("malformed chunk terminator")
			}
			p.in = p.in[2:]
			p.phase = chunkSize
		case chunkTrailer:
			idx := bytes.Index(p.in, []byte("\r\n"))
			if idx < 0 {
				return false, nil
			}
			line := p.in[:idx]
			p.in = p.in[idx+2:]
			if len(line) == 0 {
				p.done = true
				return true, nil
			}
			// Trailer headers are consumed and ignored.
		}
	}
}

func parseHeaderBlock(block []byte) (status int, proto, reason string, header http.Header, err error) {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(block)))
	line, err := tp.ReadLine()
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("read status line: %w", err)
	}
	proto, after, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return 0, "", "", nil, fmt.Errorf("malformed status line %q", line)
	}
	code, reason, _ := strings.Cut(after, " ")
	status, err = strconv.Atoi(code)
	if err != nil || status < 100 || status > 599 {
		return 0, "", "", nil, fmt.Errorf("malformed status code %q", code)
	}
	mime, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return 0, "", "", nil, fmt.Errorf("read headers: %w", err)
	}
	return status, proto, reason, http.Header(mime), nil
}

func hasChunkedEncoding(h http.Header) bool {
	for _, v := range h.Values("Transfer-Encoding") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "chunked") {
				return true
			}
		}
	}
	return false
}
