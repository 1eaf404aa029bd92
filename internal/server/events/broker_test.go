package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lbmap/internal/server/events"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	closed bool
}

func (r *recorder) Send(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) snapshot() ([]events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...), r.closed
}

func newBroker(t *testing.T) (*events.Broker, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	b := events.NewBroker(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(cancel)
	return b, cancel
}

func TestSubscribeBeforeRunDoesNotBlock(t *testing.T) {
	logger := zerolog.Nop()
	b := events.NewBroker(&logger)

	done := make(chan struct{})
	go func() {
		for range 5 {
			b.Subscribe(&recorder{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe blocked before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	assert.Eventually(t, func() bool { return b.SubscriberCount() == 5 }, time.Second, 5*time.Millisecond)
}

func TestPublishDeliversInOrder(t *testing.T) {
	b, _ := newBroker(t)
	sub := &recorder{}
	b.Subscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	b.Publish(events.ServiceCreated, "edge", map[string]any{"service": "a"})
	b.Publish(events.ServiceRemoved, "edge", map[string]any{"service": "b"})

	require.Eventually(t, func() bool {
		got, _ := sub.snapshot()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	got, _ := sub.snapshot()
	assert.Equal(t, events.ServiceCreated, got[0].Type)
	assert.Equal(t, events.ServiceRemoved, got[1].Type)
	assert.Equal(t, "edge", got[0].Table)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, int64(2), b.EventsPublished())
}

func TestUnsubscribeClosesSubscriber(t *testing.T) {
	b, _ := newBroker(t)
	sub := &recorder{}
	b.Subscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	b.Unsubscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, closed := sub.snapshot()
	assert.True(t, closed)
}

func TestShutdownClosesSubscribers(t *testing.T) {
	b, cancel := newBroker(t)
	sub := &recorder{}
	b.Subscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, closed := sub.snapshot()
	assert.True(t, closed)
}

func TestPublishDropsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	b := events.NewBroker(&logger) // not running, so nothing drains

	for range 300 {
		b.Publish(events.ReconcileCompleted, "edge", nil)
	}
	assert.Equal(t, int64(256), b.EventsPublished())
	assert.Equal(t, int64(44), b.EventsDropped())
	assert.Equal(t, 256, b.QueueDepth())
}
