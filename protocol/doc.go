// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package protocol implements the client side of the WebSocket protocol for
// hioload-requests: the upgrade handshake executed through the bridge's
// transfer pipeline, and the frame codec for the established connection.
package protocol
