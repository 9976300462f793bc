// Package events provides the process-local synchronous publish/subscribe
// bus that fans domain events (job transitions, player state) out to
// in-process subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine and must only hand work off (enqueue a frame,
// signal a channel), never block on I/O.
type Handler[T any] func(T)

type subscription[T any] struct {
	id      uint64
	handler Handler[T]
}

// Bus is a synchronous in-process event bus. Publish returns only after
// every subscriber handler has been invoked. There is no persistence and
// no backpressure: with no subscribers attached an event is dropped.
type Bus[T any] struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
	subs      []subscription[T]
	nextID    uint64
	log       *zap.SugaredLogger
}

// NewBus creates a bus. The logger records recovered handler panics.
func NewBus[T any](log *zap.SugaredLogger) *Bus[T] {
	return &Bus[T]{log: log}
}

// Subscribe registers a handler and returns an unsubscribe function.
// Safe to call while publishes are in flight; the handler starts
// receiving with the next publish.
func (b *Bus[T]) Subscribe(handler Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[T]{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every subscriber in registration order.
// Publishes are serialized, so any two events from one publisher reach
// every subscriber in publish order. A panicking handler is logged and
// does not affect the publish or other subscribers.
func (b *Bus[T]) Publish(event T) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.RLock()
	subs := make([]subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(s, event)
	}
}

func (b *Bus[T]) invoke(s subscription[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			if b.log != nil {
				b.log.Errorw("Event subscriber panicked",
					"subscription_id", s.id,
					"panic", r,
				)
			}
		}
	}()
	s.handler(event)
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
