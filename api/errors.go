// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the hioload-requests packages.

package api

import "errors"

var (
	// ErrBridgeDown is returned when work is submitted after shutdown.
	ErrBridgeDown = errors.New("bridge is torn down")
	// ErrNotSupported is returned on platforms without a reactor backend.
	ErrNotSupported = errors.New("operation not supported on this platform")
	// ErrTransferTimeout marks a transfer that exceeded its deadline.
	ErrTransferTimeout = errors.New("transfer deadline exceeded")
	// ErrResponseTooLarge marks a response body over the configured cap.
	ErrResponseTooLarge = errors.New("response exceeds maximum allowed size")
	// ErrEngineClosed is returned when a transfer is added to a closed engine.
	ErrEngineClosed = errors.New("transfer engine is closed")
)
