// File: request/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request context: the unit of work travelling through the bridge. Created
// on the host thread, initialized on the reactor thread during admission,
// completed back on the host thread exactly once.

package request

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-requests/api"
	"github.com/momentics/hioload-requests/engine"
)

// Callback delivers the terminal outcome on the host thread. Exactly one of
// resp and err is non-nil.
type Callback func(resp *Response, err error)

// Context adapts a Request into an api.RequestContext.
type Context struct {
	req *Request
	cb  Callback
	log zerolog.Logger

	transfer *engine.Transfer
	done     atomic.Bool
}

var _ api.RequestContext = (*Context)(nil)

// NewContext binds a request to its completion callback.
func NewContext(req *Request, cb Callback, log zerolog.Logger) *Context {
	return &Context{
		req: req,
		cb:  cb,
		log: log.With().Str("component", "request").Stringer("id", req.ID).Logger(),
	}
}

// Request returns the underlying request, for inspection in callbacks.
func (c *Context) Request() *Request { return c.req }

// InitTransfer resolves the target and builds the transfer handle. Runs on
// the reactor thread; on error the bridge drops the context silently.
func (c *Context) InitTransfer() (api.Transfer, error) {
	host := c.req.URL.Hostname()
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, c.req.Port()))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", c.req.URL.Host, err)
	}
	c.transfer = engine.NewTransfer(engine.Options{
		Owner:          c,
		Addr:           addr,
		Host:           c.req.URL.Host,
		Wire:           c.req.Wire(),
		NoBody:         c.req.Method == "HEAD",
		ConnectTimeout: c.req.ConnectTimeout,
		Timeout:        c.req.Timeout,
	})
	return c.transfer, nil
}

// OnCompleted delivers the outcome to the user callback, exactly once.
func (c *Context) OnCompleted(err error) {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		c.log.Debug().Err(err).Msg("transfer failed")
		c.cb(nil, err)
		return
	}
	res := c.transfer.Result()
	c.cb(&Response{
		StatusCode: res.StatusCode,
		Proto:      res.Proto,
		Status:     res.Status,
		Header:     res.Header,
		Body:       res.Body,
	}, nil)
}
