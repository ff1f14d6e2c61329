package cart

import (
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	m    *Manager
	seen atomic.Int64 // unix nanos of the last Get
}

// Registry owns one Manager per session.
type Registry struct {
	mu    sync.RWMutex
	carts map[string]*entry
	now   func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*entry), now: time.Now}
}

// Get returns the cart for session, creating an empty one on first use.
func (r *Registry) Get(session string) *Manager {
	now := r.now().UnixNano()
	r.mu.RLock()
	e, ok := r.carts[session]
	r.mu.RUnlock()
	if ok {
		e.seen.Store(now)
		return e.m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.carts[session]; ok {
		e.seen.Store(now)
		return e.m
	}
	e = &entry{m: New()}
	e.seen.Store(now)
	r.carts[session] = e
	return e.m
}

// Drop forgets the cart for session.
func (r *Registry) Drop(session string) {
	r.mu.Lock()
	delete(r.carts, session)
	r.mu.Unlock()
}

// Sweep drops carts not touched for longer than idle and returns how many
// it removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.carts {
		if e.seen.Load() < cutoff {
			delete(r.carts, k)
			n++
		}
	}
	return n
}

// Len returns the number of live carts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}
