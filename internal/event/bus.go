package event

import (
	"sync"

	"github.com/google/uuid"
)

// InMemoryBus delivers every event to every listener synchronously, on the
// publisher's goroutine, in subscription order.
type InMemoryBus struct {
	mu          sync.RWMutex
	order       []string
	subscribers map[string]func(Event)
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string]func(Event)),
	}
}

func (b *InMemoryBus) Publish(e Event) {
	// Snapshot so listeners may subscribe or unsubscribe while being called.
	b.mu.RLock()
	listeners := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		listeners = append(listeners, b.subscribers[id])
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}

func (b *InMemoryBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscribers[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			for i, existing := range b.order {
				if existing == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *InMemoryBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
