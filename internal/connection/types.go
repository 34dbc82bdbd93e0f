package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrHandshake    = errors.New("broker handshake failed")
)

// State is the connection lifecycle state, shared by the whole process.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the canonical state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	}
	return "UNKNOWN"
}

// Message is an inbound broker message scoped to one topic.
type Message struct {
	Topic      string    // Destination the broker delivered on
	Body       []byte    // Raw frame body (JSON order snapshot)
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// Config configures the broker connection.
type Config struct {
	URL               string        // Broker endpoint (e.g. ws://host/ws)
	HeartbeatInterval time.Duration // Outgoing heartbeat cadence, also offered to the broker
	ReconnectDelay    time.Duration // Fixed wait between reconnect attempts
	DialTimeout       time.Duration // WebSocket handshake timeout
	WriteTimeout      time.Duration // Write deadline for frame sends
	BufferSize        int           // Inbound message channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
		ReconnectDelay:    5 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        1024,
	}
}
