// File: protocol/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket connect context: the upgrade handshake rides the same
// pending/admission/completion pipeline as plain HTTP requests; on success
// the completion callback receives the established connection.

package protocol

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-requests/api"
	"github.com/momentics/hioload-requests/engine"
)

// ConnectCallback delivers the upgrade outcome on the host thread. Exactly
// one of conn and err is non-nil; on success the host owns the connection.
type ConnectCallback func(conn *Conn, err error)

// Context adapts a WebSocket connect into an api.RequestContext.
type Context struct {
	u      *url.URL
	header http.Header
	cb     ConnectCallback
	log    zerolog.Logger

	connectTimeout time.Duration
	timeout        time.Duration

	key      string
	transfer *engine.Transfer
	done     atomic.Bool
}

var _ api.RequestContext = (*Context)(nil)

// NewContext builds a connect context for a ws:// target.
func NewContext(rawURL string, header http.Header, cb ConnectCallback, log zerolog.Logger) (*Context, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "ws" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}
	return &Context{
		u:      u,
		header: header,
		cb:     cb,
		log:    log.With().Str("component", "websocket").Str("host", u.Host).Logger(),
	}, nil
}

// SetTimeouts overrides the engine defaults for this handshake.
func (c *Context) SetTimeouts(connect, total time.Duration) {
	c.connectTimeout = connect
	c.timeout = total
}

// InitTransfer resolves the target and builds the upgrade transfer. Runs on
// the reactor thread during admission.
func (c *Context) InitTransfer() (api.Transfer, error) {
	port := c.u.Port()
	if port == "" {
		port = "80"
	}
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(c.u.Hostname(), port))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", c.u.Host, err)
	}
	key, err := NewKey()
	if err != nil {
		return nil, err
	}
	c.key = key
	c.transfer = engine.NewTransfer(engine.Options{
		Owner:          c,
		Addr:           addr,
		Host:           c.u.Host,
		Wire:           UpgradeWire(c.u, key, c.header),
		Upgrade:        true,
		ConnectTimeout: c.connectTimeout,
		Timeout:        c.timeout,
	})
	return c.transfer, nil
}

// OnCompleted validates the handshake and hands the connection to the host.
func (c *Context) OnCompleted(err error) {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		c.cb(nil, err)
		return
	}

	res := c.transfer.Result()
	if res.StatusCode != http.StatusSwitchingProtocols {
		c.cb(nil, fmt.Errorf("%w: status %d %s", ErrUpgradeRefused, res.StatusCode, res.Status))
		return
	}
	if verr := VerifyAccept(c.key, res.Header.Get(HeaderSecWebSocketAccept)); verr != nil {
		closeFd(res.DetachedFd)
		c.cb(nil, verr)
		return
	}

	conn, cerr := newConn(res.DetachedFd, res.Leftover, c.log)
	if cerr != nil {
		closeFd(res.DetachedFd)
		c.cb(nil, cerr)
		return
	}
	c.log.Debug().Msg("websocket established")
	c.cb(conn, nil)
}
