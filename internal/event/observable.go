package event

import (
	"sync"

	"github.com/google/uuid"
)

// Observable holds a current value and pushes every new value to its
// subscribers. Subscribe delivers the current value immediately.
type Observable[T any] struct {
	mu          sync.RWMutex
	value       T
	order       []string
	subscribers map[string]func(T)
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value:       initial,
		subscribers: make(map[string]func(T)),
	}
}

func (o *Observable[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	o.value = v
	listeners := make([]func(T), 0, len(o.order))
	for _, id := range o.order {
		listeners = append(listeners, o.subscribers[id])
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

func (o *Observable[T]) Subscribe(fn func(T)) func() {
	o.mu.Lock()
	id := uuid.NewString()
	o.subscribers[id] = fn
	o.order = append(o.order, id)
	current := o.value
	o.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subscribers, id)
			for i, existing := range o.order {
				if existing == id {
					o.order = append(o.order[:i:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}
