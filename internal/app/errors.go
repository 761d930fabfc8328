package app

import "errors"

var (
	// ErrNotJoined marks any event received before join-room.
	ErrNotJoined = errors.New("connection has not joined a room")
	// ErrDuplicateConnection means a peer record already exists for a live
	// connection id. This is an internal invariant violation, fatal to the
	// connection but never to the process.
	ErrDuplicateConnection = errors.New("peer already registered for connection")
	// ErrNoSendTransport means the client tried to produce or connect before
	// creating its send transport.
	ErrNoSendTransport = errors.New("no send transport for connection")
)
