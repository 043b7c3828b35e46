package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	// Given: two subscribers
	b := NewBroadcaster()
	defer b.Close()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	require.Equal(t, 2, b.Count())

	// When: an event is published
	b.Publish(Event{IndexType: "docs", State: "parser", Progress: 10})

	// Then: both receive it
	ev1 := <-s1.Events()
	ev2 := <-s2.Events()
	assert.Equal(t, 10, ev1.Progress)
	assert.Equal(t, ev1, ev2)
}

func TestBroadcaster_SlowSubscriberIsDropped(t *testing.T) {
	// Given: one subscriber that drains and one that never reads
	b := NewBroadcaster()
	defer b.Close()
	fast := b.Subscribe()
	slow := b.Subscribe()

	// When: more events are published than the slow buffer holds
	for i := 0; i <= subscriberBuffer; i++ {
		b.Publish(Event{Progress: i})
		<-fast.Events()
	}

	// Then: the slow subscriber is gone and its channel is closed
	assert.Equal(t, 1, b.Count())
	for range slow.Events() {
	}

	// And: the fast subscriber keeps receiving
	b.Publish(Event{Progress: 99})
	ev := <-fast.Events()
	assert.Equal(t, 99, ev.Progress)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()
	sub := b.Subscribe()

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.Count())

	// The channel is closed and a second unsubscribe is harmless
	_, open := <-sub.Events()
	assert.False(t, open)
	b.Unsubscribe(sub)
}

func TestBroadcaster_Close(t *testing.T) {
	// Given: a broadcaster with a live subscriber
	b := NewBroadcaster()
	sub := b.Subscribe()

	// When: it shuts down
	b.Close()

	// Then: the subscriber's channel is closed
	_, open := <-sub.Events()
	assert.False(t, open)

	// And: publish and a second close are no-ops
	b.Publish(Event{Progress: 1})
	b.Close()

	// And: late subscribers get an already-closed channel
	late := b.Subscribe()
	_, open = <-late.Events()
	assert.False(t, open)
	assert.Equal(t, 0, b.Count())
}
