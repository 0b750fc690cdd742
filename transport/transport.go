// Package transport implements the pluggable framed byte-stream transports
// every framed transport implements: a small capability interface {Send, Recv,
// IsConnected, Close} with concrete variants for Unix, TCP, UDP, QUIC, and an
// in-process loopback, all carrying the same serialized message.Message.
package transport

import (
	"errors"

	"github.com/foundation42/microkernel/message"
)

// Named error values a Transport returns.
var (
	ErrDisconnected  = errors.New("transport: disconnected")
	ErrOversizedSend = errors.New("transport: frame too large for one datagram")
	ErrHandshake     = errors.New("transport: handshake magic mismatch")
	ErrShortWrite    = errors.New("transport: short write")
)

// Transport is the capability interface every variant implements. None of
// its methods block: Send is best-effort and returns failure rather than
// waiting, Recv returns immediately with whatever is already buffered.
type Transport interface {
	// Send serializes and attempts delivery of msg. It returns true only
	// if the full frame was handed to the kernel (fully written for a
	// stream transport, fit in one datagram for UDP).
	Send(msg message.Message) bool
	// Recv returns the next fully received, fully validated message, or
	// ok=false if none is currently buffered. Never blocks.
	Recv() (msg message.Message, ok bool)
	// IsConnected reports whether the endpoint is currently usable.
	// Listener transports are connected once any peer has been accepted.
	IsConnected() bool
	// PeerNode returns the node id this transport talks to. It may be
	// provisional (zero) until a handshake or first datagram has been
	// observed.
	PeerNode() uint32
	// FD returns a pollable file descriptor for reactor integration, or
	// -1 if this transport has nothing pollable of its own (e.g. a
	// loopback transport that needs no OS readiness signal).
	FD() int
	// Close releases every resource the transport owns.
	Close() error
}
