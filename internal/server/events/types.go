// Package events fans table changes out to real-time transports.
//
// Client hooks publish to a Broker, and the broker hands every event to each
// registered Subscriber (the WebSocket hub and the SSE broadcaster).
package events

import "time"

// EventType represents the type of table event.
type EventType string

// Event types for table changes.
const (
	// Service events (from client hooks).
	ServiceCreated EventType = "service.created"
	ServiceUpdated EventType = "service.updated"
	ServiceRemoved EventType = "service.removed"

	// Pass events.
	ReconcileCompleted EventType = "reconcile.completed"
	ReconcileFailed    EventType = "reconcile.failed"

	// Client events (from transport layers).
	ClientConnected EventType = "client.connected"
)

// Event represents a table event with type, timestamp, and data.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Table     string    `json:"table,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
