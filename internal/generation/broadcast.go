package generation

import "sync"

// subscriberBuffer is how many events a subscriber may lag before it
// is dropped. Sized for a TUI redrawing at human speed.
const subscriberBuffer = 16

// Subscriber is one receiver of broadcast events. Its channel is
// closed when the subscriber is dropped or the broadcaster shuts down.
type Subscriber struct {
	id int
	ch chan Event
}

// Events returns the receive side of the subscription.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broadcaster fans events out to any number of subscribers. Publish
// never blocks: a subscriber that cannot keep up has its channel
// closed and is removed, so one stuck consumer cannot stall a run.
// Late subscribers see only future events; callers that need the
// current state first take a Manager snapshot, then subscribe.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]*Subscriber
	nextID int
	closed bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*Subscriber)}
}

// Subscribe registers a new receiver. On a closed broadcaster the
// returned subscriber's channel is already closed.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{id: b.nextID, ch: make(chan Event, subscriberBuffer)}
	b.nextID++
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a receiver and closes its channel. Safe to call
// for a subscriber that was already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber that has buffer room
// and drops the rest.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for id, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, id)
			close(sub.ch)
		}
	}
}

// Count returns the number of live subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all subscribers. Publish and Subscribe become no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
