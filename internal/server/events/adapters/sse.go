package adapters

import (
	"github.com/agentstation/lbmap/internal/server/events"
	"github.com/agentstation/lbmap/internal/server/sse"
)

// SSESubscriber adapts the SSE broadcaster to the Subscriber interface.
type SSESubscriber struct {
	broadcaster *sse.Broadcaster
}

// NewSSESubscriber creates a new SSE subscriber.
func NewSSESubscriber(broadcaster *sse.Broadcaster) *SSESubscriber {
	return &SSESubscriber{broadcaster: broadcaster}
}

// Send delivers an event to the streams watching its table. The table is
// repeated in the payload since SSE frames carry no other place for it.
func (s *SSESubscriber) Send(event events.Event) error {
	s.broadcaster.Broadcast(sse.Event{
		Event: string(event.Type),
		ID:    event.ID,
		Table: event.Table,
		Data: map[string]any{
			"table":     event.Table,
			"timestamp": event.Timestamp,
			"data":      event.Data,
		},
	})
	return nil
}

// Close is a no-op; the broadcaster manages its own lifecycle.
func (s *SSESubscriber) Close() error {
	return nil
}
