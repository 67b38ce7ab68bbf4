// File: engine/transfer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transfer handle and its per-descriptor state machine:
// connecting -> writing -> reading -> done.

package engine

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/momentics/hioload-requests/api"
)

// errAgain marks a would-block condition; the step keeps its interest and
// waits for the next readiness event.
var errAgain = errors.New("io temporarily unavailable")

type state int

const (
	stateConnecting state = iota
	stateWriting
	stateReading
	stateDone
)

// Options describes one transfer to execute.
type Options struct {
	// Owner is the request context the outcome is routed back to.
	Owner api.RequestContext
	// Addr is the resolved target address.
	Addr *net.TCPAddr
	// Host is the logical host name, for logging only.
	Host string
	// Wire is the fully serialized request (request line, headers, body).
	Wire []byte
	// NoBody marks responses that carry headers only (HEAD requests).
	NoBody bool
	// Upgrade marks a protocol-upgrade transfer: on a 101 response the
	// descriptor is left open and detached into the Result instead of
	// being closed.
	Upgrade bool
	// ConnectTimeout and Timeout override the engine defaults when > 0.
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// Result is the terminal outcome of a successful transfer.
type Result struct {
	StatusCode int
	Proto      string
	Status     string
	Header     http.Header
	Body       []byte

	// DetachedFd is the still-open descriptor of an upgraded connection,
	// -1 otherwise. Leftover holds any bytes read past the response headers;
	// they belong to the upgraded stream.
	DetachedFd int
	Leftover   []byte
}

// Transfer is one in-flight operation owned by the engine between Add and
// the corresponding Remove.
type Transfer struct {
	opts Options

	fd       int
	st       state
	written  int
	parser   responseParser
	detached bool

	// deadline is the currently effective expiry: the connect deadline while
	// connecting, the overall deadline afterwards.
	deadline time.Time
	overall  time.Time
	heapIdx  int

	result Result
}

// NewTransfer builds a transfer handle. The engine starts driving it once it
// is handed to Add.
func NewTransfer(opts Options) *Transfer {
	return &Transfer{opts: opts, fd: -1, heapIdx: -1}
}

// Owner returns the back-reference used to route the terminal outcome.
func (t *Transfer) Owner() api.RequestContext { return t.opts.Owner }

// Result is valid once the transfer has been reported finished without error.
func (t *Transfer) Result() *Result { return &t.result }

// Fd exposes the descriptor for engine bookkeeping.
func (t *Transfer) Fd() int { return t.fd }

func (t *Transfer) finishResult() {
	t.result = Result{
		StatusCode: t.parser.status,
		Proto:      t.parser.proto,
		Status:     t.parser.reason,
		Header:     t.parser.header,
		Body:       t.parser.body,
		DetachedFd: -1,
	}
	if t.opts.Upgrade && t.parser.status == http.StatusSwitchingProtocols {
		t.detached = true
		t.result.DetachedFd = t.fd
		t.result.Leftover = t.parser.leftover
	}
}
