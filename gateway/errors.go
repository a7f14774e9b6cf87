package gateway

import (
	"errors"

	"github.com/risa-org/gateway/handshake"
	"github.com/risa-org/gateway/protocol"
)

var (
	// ErrNoServerResponse: no READY within the handshake timeout.
	ErrNoServerResponse = handshake.ErrNoServerResponse
	// ErrUnknownConnection: login wait cancelled without a known cause.
	ErrUnknownConnection = handshake.ErrUnknownConnection
	// ErrMalformedFrame: an inbound frame could not be decoded and was dropped.
	ErrMalformedFrame = protocol.ErrMalformedFrame

	// ErrServerRedirecting is the disconnect reason recorded when the server
	// asks the client to move. The client reconnects on its own.
	ErrServerRedirecting = errors.New("server is redirecting")
	// ErrConnectionClosed is recorded when the server closes the transport cleanly.
	ErrConnectionClosed = errors.New("gateway closed the connection")
	// ErrConnectionLost is recorded when the transport fails.
	ErrConnectionLost = errors.New("gateway connection lost")

	// ErrClientClosed is returned by a Connect or Restore that Close overtook.
	ErrClientClosed = errors.New("gateway client closed")

	ErrNotConnected     = errors.New("gateway client not connected")
	ErrAlreadyConnected = errors.New("gateway client already connected")
	ErrNoCheckpoint     = errors.New("no resumable checkpoint")
)
