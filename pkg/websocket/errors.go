package websocket

import "errors"

// Sentinel errors for WebSocket connections.
var (
	// ErrTimeout indicates no frame arrived before the receive deadline.
	ErrTimeout = errors.New("websocket: receive timeout")

	// ErrClosed indicates the connection is closed, locally or by the peer.
	ErrClosed = errors.New("websocket: connection closed")

	// ErrHandshake indicates the server answered the upgrade request with
	// something other than 101 Switching Protocols.
	ErrHandshake = errors.New("websocket: handshake rejected")
)
