// Package reactive provides observable value cells that notify listeners on write.
package reactive

import (
	"sync"
)

// Listener receives the new value of a cell after every write.
type Listener[T any] func(T)

// Unsubscribe detaches a previously registered listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Cell holds a single mutable value. Writes notify every registered listener synchronously on
// the writing goroutine, after the cell lock has been released.
type Cell[T any] struct {
	mu        sync.Mutex
	value     T
	nextID    uint64
	listeners map[uint64]Listener[T]
	order     []uint64
}

// NewCell constructs a cell holding the provided initial value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:     initial,
		listeners: make(map[uint64]Listener[T]),
	}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores the value and notifies listeners in registration order.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	c.value = value
	listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
}

// Subscribe registers fn for future writes. The current value is not replayed.
func (c *Cell[T]) Subscribe(fn Listener[T]) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	if c.listeners == nil {
		c.listeners = make(map[uint64]Listener[T])
	}
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.order = append(c.order, id)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners, id)
			for i, existing := range c.order {
				if existing == id {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Listeners reports how many listeners are currently attached.
func (c *Cell[T]) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Cell[T]) snapshotLocked() []Listener[T] {
	if len(c.order) == 0 {
		return nil
	}
	out := make([]Listener[T], 0, len(c.order))
	for _, id := range c.order {
		if fn, ok := c.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
