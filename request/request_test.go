// File: request/request_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package request

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonHTTP(t *testing.T) {
	_, err := New("GET", "https://example.com/")
	assert.Error(t, err, "TLS targets are outside this engine")

	_, err = New("GET", "ftp://example.com/")
	assert.Error(t, err)

	_, err = New("GET", "http://")
	assert.Error(t, err)
}

func TestWireGET(t *testing.T) {
	r, err := New("get", "http://example.com/items?page=2")
	require.NoError(t, err)
	r.SetHeader("Accept", "application/json")

	wire := string(r.Wire())
	lines := strings.Split(wire, "\r\n")
	assert.Equal(t, "GET /items?page=2 HTTP/1.1", lines[0])
	assert.Contains(t, lines, "Host: example.com")
	assert.Contains(t, lines, "Accept: application/json")
	assert.Contains(t, lines, "Connection: close")
	assert.NotContains(t, wire, "Content-Length", "GET without body carries no length")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\n"))
}

func TestWirePostWithJSONBody(t *testing.T) {
	r, err := New("POST", "http://example.com/users")
	require.NoError(t, err)
	require.NoError(t, r.SetJSONBody(map[string]any{"name": "ada"}))

	wire := string(r.Wire())
	assert.Contains(t, wire, "Content-Type: application/json")
	assert.Contains(t, wire, "Content-Length: 14")
	assert.True(t, strings.HasSuffix(wire, `{"name":"ada"}`))
}

func TestSetBodyPath(t *testing.T) {
	r, err := New("POST", "http://example.com/")
	require.NoError(t, err)
	require.NoError(t, r.SetBodyPath("user.name", "ada"))
	require.NoError(t, r.SetBodyPath("user.age", 36))

	assert.JSONEq(t, `{"user":{"name":"ada","age":36}}`, string(r.Body))
}

func TestWireCallerHeadersCannotOverridePlumbing(t *testing.T) {
	r, err := New("GET", "http://example.com/")
	require.NoError(t, err)
	r.SetHeader("Connection", "keep-alive")
	r.SetHeader("Host", "spoofed")

	wire := string(r.Wire())
	assert.Contains(t, wire, "Connection: close")
	assert.NotContains(t, wire, "keep-alive")
	assert.Contains(t, wire, "Host: example.com")
	assert.NotContains(t, wire, "spoofed")
}

func TestPortDefaults(t *testing.T) {
	r, err := New("GET", "http://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "80", r.Port())

	r, err = New("GET", "http://example.com:8080/")
	require.NoError(t, err)
	assert.Equal(t, "8080", r.Port())
}

func TestResponseJSONHelpers(t *testing.T) {
	res := &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"items":[{"name":"first"},{"name":"second"}],"total":2}`),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}

	assert.Equal(t, "second", res.Get("items.1.name").String())
	assert.Equal(t, int64(2), res.Get("total").Int())
	assert.Equal(t, "application/json", res.HeaderValue("content-type"))

	var decoded struct {
		Total int `json:"total"`
	}
	require.NoError(t, res.DecodeJSON(&decoded))
	assert.Equal(t, 2, decoded.Total)
}
