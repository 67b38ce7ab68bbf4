// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package request is the host-side request builder: it constructs HTTP
// requests, serializes them to wire form, and adapts them into the request
// contexts the bridge admits. Responses come back through the completion
// callback with JSON access helpers.
package request
