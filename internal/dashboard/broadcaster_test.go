package dashboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcaster_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	b.Publish("threat-detected", map[string]any{"filename": "evil.exe"})

	evt := <-ch
	require.Equal(t, "threat-detected", evt.Type)
	require.Equal(t, map[string]any{"filename": "evil.exe"}, evt.Payload)
}

func TestBroadcaster_PublishDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	for i := 0; i < 64; i++ {
		b.Publish("policy-changed", i)
	}

	require.Len(t, ch, cap(ch))
}

func TestBroadcaster_SubscriberCountTracksSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	require.Equal(t, 0, b.SubscriberCount())

	_, unsubscribe := b.subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	unsubscribe()
	require.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcaster_PublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	require.NotPanics(t, func() {
		b.Publish("health-changed", nil)
	})
}
