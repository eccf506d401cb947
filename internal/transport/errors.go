package transport

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an RPC is attempted before Connect
// succeeded or after the session was closed.
var ErrNotConnected = errors.New("session not connected")

// errDesynced marks a session whose reply stream can no longer be trusted,
// e.g. after a timed-out call left an unconsumed reply in the pipe.
var errDesynced = errors.New("reply stream desynchronized; reconnect required")

// ConnectionError indicates the server process could not be reached or
// rejected the handshake. Fatal to the session; the caller should tear down.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "connect tool server: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates a malformed or unexpected response from the
// server. Fatal to the current query only; the session survives.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s: %v", e.Method, e.Err)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// ToolError wraps a tool failure reported by the server, either as a
// JSON-RPC error or as an isError result. Terminates the query; not retried.
type ToolError struct {
	Tool    string
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Message)
}
