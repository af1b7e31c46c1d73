package event

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"
)

// Handler receives a published event.
type Handler func(Event)

// wildcard is the subscription key matching every event type.
const wildcard = "*"

type handlerEntry struct {
	id string
	fn Handler
}

// Bus is a synchronous in-process pub-sub channel between the debate
// engine, the completion client, and whatever renders their output.
// Publishers fire and forget; handler return values and panics never
// reach them.
type Bus struct {
	mu      sync.RWMutex
	entries map[string][]handlerEntry
	lastID  uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{entries: make(map[string][]handlerEntry)}
}

// Subscribe registers fn for events of the given type and returns an
// ID for Unsubscribe.
func (b *Bus) Subscribe(eventType string, fn Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	id := fmt.Sprintf("sub-%d", b.lastID)
	b.entries[eventType] = append(b.entries[eventType], handlerEntry{id: id, fn: fn})
	return id
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Handler) string {
	return b.Subscribe(wildcard, fn)
}

// Unsubscribe removes the handler registered under id, reporting
// whether it was found.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, entries := range b.entries {
		for i, entry := range entries {
			if entry.id == id {
				b.entries[eventType] = append(entries[:i], entries[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish delivers e to type-specific handlers in registration order,
// then to wildcard handlers. Handlers run on the caller's goroutine;
// a panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	for _, entry := range b.snapshot(e.EventType()) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("ERROR: %s handler panicked: %v\n%s", e.EventType(), r, debug.Stack())
				}
			}()
			entry.fn(e)
		}()
	}
}

// snapshot copies the handler list for eventType plus the wildcard
// handlers, so Publish can run them without holding the lock.
func (b *Bus) snapshot(eventType string) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]handlerEntry, 0, len(b.entries[eventType])+len(b.entries[wildcard]))
	out = append(out, b.entries[eventType]...)
	return append(out, b.entries[wildcard]...)
}

// SubscriptionCount reports the number of registered handlers.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, entries := range b.entries {
		n += len(entries)
	}
	return n
}
