package authclient

import (
	"sync"
)

// broadcaster tracks the current session and fans state changes out to observers.
// New observers receive the current state immediately, mirroring the provider SDK.
type broadcaster struct {
	mu        sync.Mutex
	current   *Session
	nextID    uint64
	listeners map[uint64]StateListener
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[uint64]StateListener)}
}

func (b *broadcaster) subscribe(fn StateListener) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = fn
	fn(copySession(b.current))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// publish records the new state and notifies observers in subscription order.
// Delivery happens under the lock so observers never see states out of order.
func (b *broadcaster) publish(sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = copySession(sess)
	for id := uint64(1); id <= b.nextID; id++ {
		if fn, ok := b.listeners[id]; ok {
			fn(copySession(sess))
		}
	}
}

func (b *broadcaster) currentSession() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copySession(b.current)
}

func copySession(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	copied := *sess
	return &copied
}
