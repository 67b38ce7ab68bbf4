// File: facade/requests.go
// Unified facade layer for hioload-requests.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Engine struct, which aggregates the request bridge
// behind a single facade. It builds the bridge from immutable configuration
// and exposes methods to start/stop the engine, submit HTTP requests and
// WebSocket connects, and drive completion delivery from the host tick.

package facade

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-requests/api"
	"github.com/momentics/hioload-requests/bridge"
	"github.com/momentics/hioload-requests/protocol"
	"github.com/momentics/hioload-requests/request"
)

// Config holds parameters immutable per run.
type Config struct {
	BatchLimit      int           // Max requests admitted per perform signal
	ConnectTimeout  time.Duration // Default TCP connect deadline per transfer
	TransferTimeout time.Duration // Default overall deadline per transfer
	ReadBufferSize  int           // Per-engine socket read buffer size
	MaxResponseSize int64         // Cap on buffered response body bytes
	Logger          zerolog.Logger
}

// DefaultConfig returns default configuration values.
// These sane defaults support typical use cases without extensive tuning.
func DefaultConfig() *Config {
	return &Config{
		BatchLimit:      bridge.DefaultBatchLimit, // 10 admissions per signal
		ConnectTimeout:  10 * time.Second,
		TransferTimeout: 30 * time.Second,
		ReadBufferSize:  32 * 1024,        // 32 KiB socket reads
		MaxResponseSize: 16 * 1024 * 1024, // 16 MiB response cap
		Logger:          zerolog.Nop(),
	}
}

// Engine is the main facade type: an embeddable asynchronous request engine
// driven by the host's tick. It implements api.GracefulShutdown to allow
// unified shutdown logic.
type Engine struct {
	bridge *bridge.Bridge
	log    zerolog.Logger

	config  *Config      // Immutable configuration
	mu      sync.RWMutex // Protects started flag
	started bool         // Indicates whether Start() has been called
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*Engine)(nil)

// New constructs an Engine with the given configuration.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b, err := bridge.New(bridge.Config{
		BatchLimit:      cfg.BatchLimit,
		ConnectTimeout:  cfg.ConnectTimeout,
		TransferTimeout: cfg.TransferTimeout,
		ReadBufferSize:  cfg.ReadBufferSize,
		MaxResponseSize: cfg.MaxResponseSize,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge init failure: %w", err)
	}
	return &Engine{
		bridge: b,
		log:    cfg.Logger.With().Str("component", "facade").Logger(),
		config: cfg,
	}, nil
}

// Start spawns the background reactor thread. Subsequent calls to Start()
// have no effect.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := e.bridge.Start(); err != nil {
		return err
	}
	e.started = true
	return nil
}

// Shutdown implements api.GracefulShutdown: it stops and joins the reactor
// thread and tears down the bridge. Requests still queued or in flight are
// abandoned, their callbacks never invoked. Idempotent.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.bridge.Shutdown(); err != nil {
		return err
	}
	e.started = false
	return nil
}

// Tick is the host tick hook. Call it once per host frame: it wakes the
// reactor when pending work exists, runs deferred actions, and delivers at
// most one completion callback on the calling goroutine.
func (e *Engine) Tick() {
	e.bridge.Tick()
}

// Defer schedules fn to run on the host goroutine during a subsequent Tick.
func (e *Engine) Defer(fn func()) {
	e.bridge.Defer(fn)
}

// Do submits a request. The callback runs on the host goroutine during a
// later Tick, exactly once, unless admission fails or the engine shuts
// down first, in which case it never runs.
func (e *Engine) Do(req *request.Request, cb request.Callback) error {
	if req.ConnectTimeout == 0 {
		req.ConnectTimeout = e.config.ConnectTimeout
	}
	if req.Timeout == 0 {
		req.Timeout = e.config.TransferTimeout
	}
	return e.bridge.Enqueue(request.NewContext(req, cb, e.log))
}

// Get submits a GET request to url.
func (e *Engine) Get(url string, cb request.Callback) error {
	req, err := request.New(http.MethodGet, url)
	if err != nil {
		return err
	}
	return e.Do(req, cb)
}

// Post submits a POST request with a JSON-encoded body.
func (e *Engine) Post(url string, body any, cb request.Callback) error {
	req, err := request.New(http.MethodPost, url)
	if err != nil {
		return err
	}
	if body != nil {
		if err := req.SetJSONBody(body); err != nil {
			return err
		}
	}
	return e.Do(req, cb)
}

// Delete submits a DELETE request to url.
func (e *Engine) Delete(url string, cb request.Callback) error {
	req, err := request.New(http.MethodDelete, url)
	if err != nil {
		return err
	}
	return e.Do(req, cb)
}

// ConnectWebSocket submits a ws:// upgrade handshake. The handshake rides
// the same admission and completion pipeline as plain requests; on success
// the callback receives an established connection owned by the host.
func (e *Engine) ConnectWebSocket(url string, header http.Header, cb protocol.ConnectCallback) error {
	ctx, err := protocol.NewContext(url, header, cb, e.log)
	if err != nil {
		return err
	}
	ctx.SetTimeouts(e.config.ConnectTimeout, e.config.TransferTimeout)
	return e.bridge.Enqueue(ctx)
}

// Stats returns point-in-time queue depths for observability.
func (e *Engine) Stats() map[string]any {
	return e.bridge.Stats()
}
