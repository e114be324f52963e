// Package event provides a synchronous topic bus for state-change
// notifications.
//
// Every mutation in texmirror flows one way: a component changes
// state, then publishes the fact; subscribers recompute their view
// from scratch. Handlers run synchronously in the publisher's
// goroutine with panic recovery, so publishing never races the state
// it describes.
package event

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Topics published by the sync engine.
const (
	TopicStatusChanged    = "status.changed"
	TopicArtifactReplaced = "artifact.replaced"
	TopicSelectionChanged = "selection.changed"
	TopicAnimationStep    = "animation.step"
	TopicStoreDegraded    = "store.degraded"
	TopicCompileFailed    = "compile.failed"
)

// Handler processes a published event payload.
type Handler func(payload any)

// Bus dispatches events to topic subscribers synchronously.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	// Stats
	published atomic.Uint64
	delivered atomic.Uint64
	panicked  atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers the payload to all handlers subscribed to the
// topic, in subscription order. A panicking handler is recovered and
// does not prevent delivery to the rest.
func (b *Bus) Publish(topic string, payload any) {
	b.published.Add(1)

	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, payload)
	}
}

// deliver invokes one handler with panic recovery.
func (b *Bus) deliver(h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.panicked.Add(1)
		}
	}()
	h(payload)
	b.delivered.Add(1)
}

// Stats contains bus delivery statistics.
type Stats struct {
	Published uint64
	Delivered uint64
	Panicked  uint64
}

// Stats returns delivery statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Panicked:  b.panicked.Load(),
	}
}

// String returns a human-readable stats summary.
func (s Stats) String() string {
	return fmt.Sprintf("published=%d delivered=%d panicked=%d",
		s.Published, s.Delivered, s.Panicked)
}
