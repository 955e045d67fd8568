package events

import (
	"sync"

	"tonearm/api"
)

// Bus fans transport events out to observers such as the CLI progress
// display. Publishing never blocks: a subscriber that falls behind loses
// events rather than stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscriber
	closed bool
}

type subscriber struct {
	ch    chan api.Event
	types map[api.EventType]bool // nil means all types
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving events of the given types, or all
// events when no type is named. The channel is closed by Close.
func (b *Bus) Subscribe(types ...api.EventType) <-chan api.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscriber{ch: make(chan api.Event, 32)}
	if len(types) > 0 {
		sub.types = make(map[api.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish delivers an event to every matching subscriber without blocking.
func (b *Bus) Publish(ev api.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[ev.Type] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber full, drop rather than block.
		}
	}
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Bus) Unsubscribe(ch <-chan api.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.ch == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
