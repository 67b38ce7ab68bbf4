// File: api/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// RequestContext represents one outstanding operation travelling through the
// bridge. At any instant a context is owned by exactly one of: the producing
// host code, the pending queue, the transfer engine, the completed queue, or
// the consuming host tick. It is never shared between two owners.
type RequestContext interface {
	// InitTransfer resolves the target and builds the transfer handle.
	// It runs on the reactor thread during admission. On error the context
	// is dropped without a completion callback.
	InitTransfer() (Transfer, error)

	// OnCompleted delivers the terminal outcome. It runs on the host thread,
	// exactly once, err carrying any transfer-level failure.
	OnCompleted(err error)
}
