package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_ScopedPerUser(t *testing.T) {
	b := NewBus(4)
	alice, cancelA := b.Subscribe("alice")
	defer cancelA()
	bob, cancelB := b.Subscribe("bob")
	defer cancelB()

	n := b.Publish(Event{Kind: EventInvalidated, UserID: "alice"})
	assert.Equal(t, 1, n)

	select {
	case evt := <-alice:
		assert.Equal(t, EventInvalidated, evt.Kind)
	default:
		t.Fatal("alice did not receive event")
	}
	select {
	case evt := <-bob:
		t.Fatalf("bob received foreign event %+v", evt)
	default:
	}
}

func TestBus_FullSubscriberDrops(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe("u")
	defer cancel()

	require.Equal(t, 1, b.Publish(Event{Kind: EventInvalidated, UserID: "u"}))
	require.Equal(t, 0, b.Publish(Event{Kind: EventInvalidated, UserID: "u"}))
	<-ch
	require.Equal(t, 1, b.Publish(Event{Kind: EventInvalidated, UserID: "u"}))
}

func TestBus_CancelClosesAndIsIdempotent(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe("u")
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.Subscribers("u"))
	assert.Equal(t, 0, b.Publish(Event{Kind: EventInvalidated, UserID: "u"}))
}
