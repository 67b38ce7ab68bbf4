// File: request/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package request

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"
	"github.com/tidwall/sjson"
)

// Request describes one HTTP operation to execute through the bridge.
// Fields are owned by the host until the request is enqueued; after that the
// request must not be mutated.
type Request struct {
	// ID correlates log lines across the host and reactor threads.
	ID     uuid.UUID
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	// ConnectTimeout and Timeout override the engine defaults when > 0.
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// New builds a request for the given method and target. Only plain http
// targets are supported; TLS termination is outside this engine.
func New(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}
	return &Request{
		ID:     uuid.New(),
		Method: strings.ToUpper(method),
		URL:    u,
		Header: make(http.Header),
	}, nil
}

// SetHeader sets a request header, replacing any existing values.
func (r *Request) SetHeader(key, value string) {
	r.Header.Set(key, value)
}

// SetJSONBody marshals v as the request body and sets the content type.
func (r *Request) SetJSONBody(v any) error {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	r.Body = data
	r.Header.Set("Content-Type", "application/json")
	return nil
}

// SetBodyPath sets a value at a JSON path inside the body, creating an
// object body when none exists yet.
func (r *Request) SetBodyPath(path string, value any) error {
	body := r.Body
	if len(body) == 0 {
		body = []byte(`{}`)
	}
	out, err := sjson.SetBytes(body, path, value)
	if err != nil {
		return fmt.Errorf("set body path %q: %w", path, err)
	}
	r.Body = out
	r.Header.Set("Content-Type", "application/json")
	return nil
}

// Wire serializes the request line, headers and body into the bytes written
// to the socket. Connection reuse is not attempted: every transfer closes.
func (r *Request) Wire() []byte {
	target := r.URL.RequestURI()
	if target == "" {
		target = "/"
	}

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(target)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(r.URL.Host)
	b.WriteString("\r\n")

	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "Host" || k == "Content-Length" || k == "Connection" {
			continue
		}
		for _, v := range r.Header[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}

	if len(r.Body) > 0 || methodAllowsBody(r.Method) {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out
}

// Port returns the explicit or scheme-default target port.
func (r *Request) Port() string {
	if p := r.URL.Port(); p != "" {
		return p
	}
	return "80"
}

func methodAllowsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
