package feed

import (
	"context"
	"time"
)

// ConnectionState describes the lifecycle of a feed connection. It is owned by
// whoever drives the Source; everyone else treats it as read-only.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateSubscribed
	StateDegraded
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// MessageKind distinguishes data frames from protocol-level keepalives.
type MessageKind int

const (
	KindTick MessageKind = iota
	KindHeartbeat
)

// RawMessage is one inbound frame from the upstream feed, untouched except for
// framing. Payload stays opaque here; normalization happens downstream.
type RawMessage struct {
	Kind       MessageKind
	Payload    []byte
	ReceivedAt time.Time
}

// Source is an upstream streaming feed. Delivery is at-least-once: consumers
// must expect duplicated and out-of-order tick messages, especially around
// reconnects.
type Source interface {
	// Connect establishes the upstream session. It returns once the session is
	// usable or the context expires.
	Connect(ctx context.Context) error
	// Subscribe registers interest in the given symbols. Safe to call again
	// after a reconnect with the same set.
	Subscribe(ctx context.Context, symbols []string) error
	// Messages returns the inbound frame stream. The channel is closed when the
	// session ends, whether by Close or by a broken connection.
	Messages() <-chan RawMessage
	// Close tears down the session and releases the message channel.
	Close() error
}
