// File: fake/fakecontext.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"

	"github.com/momentics/hioload-requests/api"
)

// Context is a scriptable api.RequestContext recording its lifecycle.
type Context struct {
	// InitErr, when set, makes InitTransfer fail (rejected admission).
	InitErr error
	// InitHook, when set, runs at the start of every InitTransfer call.
	// Lets tests stall admission the way a slow name resolution would.
	InitHook func()

	mu          sync.Mutex
	inited      int
	completions []error
}

var _ api.RequestContext = (*Context)(nil)

// Transfer is the inert handle a fake context hands to the engine.
type Transfer struct {
	owner api.RequestContext
}

func (t *Transfer) Owner() api.RequestContext { return t.owner }

func (c *Context) InitTransfer() (api.Transfer, error) {
	if c.InitHook != nil {
		c.InitHook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InitErr != nil {
		return nil, c.InitErr
	}
	c.inited++
	return &Transfer{owner: c}, nil
}

func (c *Context) OnCompleted(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completions = append(c.completions, err)
}

// Inited returns how many times InitTransfer succeeded.
func (c *Context) Inited() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inited
}

// Completions returns the errors delivered so far, one per callback.
func (c *Context) Completions() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.completions...)
}
