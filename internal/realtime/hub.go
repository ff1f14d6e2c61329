// Package realtime fans order status changes out to live subscribers.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
)

// Subscription receives events for one order until Close is called.
type Subscription struct {
	C    <-chan model.StatusEvent
	ch   chan model.StatusEvent
	hub  *Hub
	slug string
}

// Close unregisters the subscription and closes C. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub routes events by order slug. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
	seq    sequencer
	now    func() time.Time

	dropped atomic.Uint64
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer, now: time.Now}
}

// Subscribe registers interest in slug. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(slug string) *Subscription {
	ch := make(chan model.StatusEvent, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h, slug: slug}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	set, ok := h.subs[slug]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[slug] = set
	}
	set[s] = struct{}{}
	return s
}

// Publish stamps ev with a sequence number and time and delivers it.
// Sequence numbers are taken under the hub lock, so every subscriber sees
// them in increasing order.
func (h *Hub) Publish(ev model.StatusEvent) model.StatusEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev.Sequence = h.seq.next()
	if ev.At.IsZero() {
		ev.At = h.now().UTC()
	}
	for s := range h.subs[ev.OrderSlug] {
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
			obs.RealtimeDropped.Inc()
			obs.Logger.Warnw("realtime_event_dropped", "order_slug", ev.OrderSlug, "sequence", ev.Sequence)
		}
	}
	return ev
}

// Subscribers returns the number of live subscriptions for slug.
func (h *Hub) Subscribers(slug string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[slug])
}

// Dropped returns how many deliveries were skipped.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for slug, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, slug)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.slug]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.slug)
	}
	close(s.ch)
}
