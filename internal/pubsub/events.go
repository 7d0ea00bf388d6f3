// Package pubsub provides a generic publish/subscribe event system used to fan
// documents, queue status and log lines out to SSE clients and TUI listeners.
package pubsub

import (
	"context"
	"time"
)

// EventType names what kind of payload an event carries.
type EventType string

const (
	// DocumentEvent carries an event-model document.
	DocumentEvent EventType = "document"
	// StatusEvent carries a queue status change.
	StatusEvent EventType = "status"
	// LogEvent carries a formatted log line.
	LogEvent EventType = "log"
	// ErrorEvent carries a failure surfaced by a background producer.
	ErrorEvent EventType = "error"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
