// File: request/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package request

import (
	"fmt"
	"net/http"

	"github.com/sugawarayuuta/sonnet"
	"github.com/tidwall/gjson"
)

// Response is the terminal outcome of a successful transfer. Success here
// means the exchange completed; HTTP-level failures (4xx, 5xx) arrive as a
// Response and are the callback's concern.
type Response struct {
	StatusCode int
	Proto      string
	Status     string
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := sonnet.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Get returns the value at a JSON path in the body, e.g. "items.0.name".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// HeaderValue returns the first value of the named response header.
func (r *Response) HeaderValue(name string) string {
	return r.Header.Get(name)
}
