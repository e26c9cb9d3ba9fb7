package chathub

import "pulse/backend/internal/models"

// Client is one live connection as seen by the hub. The transport behind it
// (a websocket, or a channel in tests) is opaque to the hub.
type Client interface {
	// ID is unique per connection.
	ID() string
	// UserID is the authenticated identity that owns the connection.
	UserID() string

	// GetSendChannel returns the buffered channel the hub enqueues outbound
	// envelopes on. The hub never blocks on it.
	GetSendChannel() chan<- models.Envelope

	// Close releases the send channel. Called exactly once, by the hub.
	Close()
}
