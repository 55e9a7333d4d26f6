package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	m := New(zerolog.Nop())
	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Publish(Event{Kind: KindClusterCreated, Ticker: "AAPL", OccurredAt: time.Now()})

	select {
	case ev := <-ch:
		assert.Equal(t, KindClusterCreated, ev.Kind)
		assert.Equal(t, "AAPL", ev.Ticker)
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	m := New(zerolog.Nop())
	ch, unsubscribe := m.Subscribe()
	require.Equal(t, 1, m.SubscriberCount())

	unsubscribe()
	require.Equal(t, 0, m.SubscriberCount())

	_, ok := <-ch
	assert.False(t, ok)
}

func TestPublish_DoesNotBlockOnFullSubscriber(t *testing.T) {
	m := New(zerolog.Nop())
	_, unsubscribe := m.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			m.Publish(Event{Kind: KindWindowEmitted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}
