package chathub

import "github.com/cockroachdb/errors"

var (
	// ErrClientClosed is returned by Send once the channel has been closed.
	ErrClientClosed = errors.New("client channel closed")
	// ErrSendBufferFull is returned by Send when the outbound buffer has no room.
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client is the send-capable handle for one session's signaling channel
// (e.g. a WebSocket). The engine only looks clients up; it never owns the
// underlying transport. Closing the transport is the transport's job and is
// reported back to the hub through ManagerService.Disconnect.
type Client interface {
	// GetSessionID returns the validated session identifier of the channel.
	GetSessionID() string
	// GetAttributes returns the matchmaking attributes supplied by the gateway.
	GetAttributes() Attributes

	// Send queues an encoded frame for delivery. It never blocks: a full
	// buffer or a closed channel is reported as an error, and the frame is
	// lost. Callers that relay on behalf of another session swallow it.
	Send(frame []byte) error

	// Close stops the write side of the channel.
	Close()
}
