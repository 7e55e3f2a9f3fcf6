package ws

import "errors"

// Hub errors
var (
	// ErrClientBufferFull is returned when a client's send buffer is full and
	// the delivery was dropped.
	ErrClientBufferFull = errors.New("client buffer is full")

	// ErrClientNotFound is returned when delivering to an unknown connection.
	ErrClientNotFound = errors.New("client not found")

	// ErrClientClosed is returned when delivering to a closing connection.
	ErrClientClosed = errors.New("client is closed")
)
