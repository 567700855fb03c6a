package session

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("session: not connected")
	ErrAlreadyConnected = errors.New("session: already connected")
	ErrAlreadyClosed    = errors.New("session: already closed")
	ErrNotSubscribed    = errors.New("session: no connection id assigned")
	ErrServerFailed     = errors.New("session: server reported failure")
)

// State is the session's position in the client handshake.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHandshake
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Update is one value surfaced to the caller. Err is set, and Price empty,
// when the message carried no usable value.
type Update struct {
	Price      string
	SecurityID string
	Err        error
	ReceivedAt time.Time // local time the message was read
}

// Config configures a Session.
type Config struct {
	URL              string        // WebSocket URL, e.g. ws://localhost:8080
	ProductID        string        // product to subscribe to once greeted
	HandshakeTimeout time.Duration // WebSocket opening handshake timeout
	WriteTimeout     time.Duration // write deadline for requests
	BufferSize       int           // Updates() channel buffer size
}

// DefaultConfig returns defaults matching a local quotestream-server.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:8080",
		ProductID:        "100",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.ProductID == "" {
		c.ProductID = d.ProductID
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}
