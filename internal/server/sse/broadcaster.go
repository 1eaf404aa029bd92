// Package sse streams table events to Server-Sent Events clients.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/lbmap/pkg/constants"
)

// heartbeat keeps idle streams open through proxies.
const heartbeat = 30 * time.Second

// Event is one SSE frame. Table scopes delivery and is not written.
type Event struct {
	Event string `json:"event,omitempty"`
	ID    string `json:"id,omitempty"`
	Table string `json:"-"`
	Data  any    `json:"data"`
}

type stream struct {
	table  string // empty receives every table
	events chan Event
}

// Broadcaster fans events out to open event streams.
type Broadcaster struct {
	mu      sync.RWMutex
	streams map[*stream]struct{}
	stopped bool

	events chan Event
	logger *zerolog.Logger
}

// NewBroadcaster creates a broadcaster. Streams may open before Run is called.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		streams: make(map[*stream]struct{}),
		events:  make(chan Event, constants.ChannelBufferSize),
		logger:  logger,
	}
}

// Run delivers events until ctx is canceled, then ends every stream.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.stopped = true
			for s := range b.streams {
				delete(b.streams, s)
				close(s.events)
			}
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster shut down")
			return

		case event := <-b.events:
			b.mu.RLock()
			for s := range b.streams {
				if s.table != "" && event.Table != "" && s.table != event.Table {
					continue
				}
				select {
				case s.events <- event:
				default:
					b.logger.Warn().Str("event", event.Event).Msg("SSE client buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *Broadcaster) open(table string) (*stream, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, false
	}
	s := &stream{table: table, events: make(chan Event, constants.ChannelBufferSize)}
	b.streams[s] = struct{}{}
	b.logger.Debug().Str("table", table).Int("total_clients", len(b.streams)).Msg("SSE client connected")
	return s, true
}

func (b *Broadcaster) close(s *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[s]; ok {
		delete(b.streams, s)
		close(s.events)
	}
	b.logger.Debug().Int("total_clients", len(b.streams)).Msg("SSE client disconnected")
}

// Broadcast queues an event. When the broadcaster is backed up the event is
// dropped.
func (b *Broadcaster) Broadcast(event Event) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn().Str("event", event.Event).Msg("SSE broadcast channel full, event dropped")
	}
}

// ClientCount returns the number of open streams.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

// ServeHTTP streams events until the client goes away or the broadcaster
// stops. The table query parameter limits the stream to one table.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	table := r.URL.Query().Get("table")
	s, ok := b.open(table)
	if !ok {
		http.Error(w, "Event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer b.close(s)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	b.write(w, Event{
		Event: "connected",
		Data: map[string]any{
			"message":   "Connected to lbmap event stream",
			"table":     table,
			"timestamp": time.Now().UTC(),
		},
	})
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			b.write(w, event)
			flusher.Flush()

		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (b *Broadcaster) write(w io.Writer, event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		b.logger.Error().Err(err).Str("event", event.Event).Msg("Failed to marshal SSE event data")
		return
	}
	if event.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event.Event)
	}
	if event.ID != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
