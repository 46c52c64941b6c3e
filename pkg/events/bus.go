// Package events carries progress of a check run to whoever is listening.
// The HTTP API replays the history and streams live events.
package events

import (
	"sync"
	"time"
)

// defaultHistoryLimit bounds how many events a bus remembers.
const defaultHistoryLimit = 1024

// EventBus provides publish/subscribe for check events.
type EventBus interface {
	Publish(event Event)
	Subscribe(filter ...EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
	History(since time.Time) []Event
}

type subscriber struct {
	ch     chan Event
	filter map[EventType]bool // empty means all events
}

// BusOption configures a MemoryBus.
type BusOption func(*MemoryBus)

// WithHistoryLimit caps the replay history; older events are dropped first.
// A limit <= 0 keeps everything.
func WithHistoryLimit(n int) BusOption {
	return func(b *MemoryBus) {
		b.limit = n
	}
}

// MemoryBus is an in-memory implementation of EventBus.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	history     []Event
	limit       int
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus(opts ...BusOption) *MemoryBus {
	b := &MemoryBus{limit: defaultHistoryLimit}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *MemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, event)
	if b.limit > 0 && len(b.history) > b.limit {
		b.history = append([]Event(nil), b.history[len(b.history)-b.limit:]...)
	}

	// Sends never block, so they happen under the lock and Unsubscribe
	// cannot close a channel mid-send.
	for _, sub := range b.subscribers {
		if len(sub.filter) > 0 && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow subscribers miss events rather than stall the run.
		}
	}
}

func (b *MemoryBus) Subscribe(filter ...EventType) <-chan Event {
	sub := subscriber{ch: make(chan Event, 64)}
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, f := range filter {
			sub.filter[f] = true
		}
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return sub.ch
}

func (b *MemoryBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

func (b *MemoryBus) History(since time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, e := range b.history {
		if !e.Timestamp.Before(since) {
			result = append(result, e)
		}
	}
	return result
}
