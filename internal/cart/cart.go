// Package cart holds the per-session shopping cart state.
//
// A Manager is an owned container: callers construct one and pass it where it
// is needed. All mutations are total; a quantity is always clamped into
// [1, MaxQuantity] instead of being rejected.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
)

// Outcome reports what a mutation did.
type Outcome int

const (
	// Applied means the state changed as requested.
	Applied Outcome = iota
	// AtMaximum means the quantity is pinned at MaxQuantity.
	AtMaximum
	// AtMinimum means the quantity is pinned at 1.
	AtMinimum
	// NotFound means no line item has the given product id.
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AtMaximum:
		return "at_maximum"
	case AtMinimum:
		return "at_minimum"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Snapshot is a consistent view of a cart taken after a mutation. Version
// increases by one with every applied mutation.
type Snapshot struct {
	Items     []model.LineItem
	ItemCount int
	Version   uint64
}

// Observer is called synchronously after every applied mutation, in version
// order. It may read the cart. It must not mutate it: a mutation from inside
// an observer waits for its own delivery turn and never returns.
type Observer func(Snapshot)

// Manager maintains an ordered set of line items keyed by product id.
type Manager struct {
	mu      sync.RWMutex
	items   []model.LineItem
	index   map[int64]int
	version uint64

	// delivered is the last version handed to observers. pubCond lets
	// later versions wait their turn without holding mu.
	pubMu     sync.Mutex
	pubCond   *sync.Cond
	delivered uint64

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// New returns an empty cart.
func New() *Manager {
	m := &Manager{index: make(map[int64]int), observers: make(map[int]Observer)}
	m.pubCond = sync.NewCond(&m.pubMu)
	return m
}

// Add merges candidate into the cart. An existing line keeps its title, price
// and ceiling; only the quantity accumulates, clamped to MaxQuantity.
func (m *Manager) Add(candidate model.LineItem) Outcome {
	m.mu.Lock()
	out := Applied
	if i, ok := m.index[candidate.ProductID]; ok {
		it := &m.items[i]
		// Compare against the headroom so a huge candidate cannot overflow.
		q := it.Quantity + candidate.Quantity
		if candidate.Quantity > it.MaxQuantity-it.Quantity {
			q = it.MaxQuantity
			out = AtMaximum
		}
		if q < 1 {
			q = 1
		}
		if q == it.Quantity {
			m.mu.Unlock()
			return out
		}
		it.Quantity = q
	} else {
		m.index[candidate.ProductID] = len(m.items)
		m.items = append(m.items, normalize(candidate))
	}
	m.unlockAndNotify(m.commitLocked())
	return out
}

// Remove drops the line for id. Absent ids are a no-op.
func (m *Manager) Remove(id int64) Outcome {
	m.mu.Lock()
	i, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return NotFound
	}
	m.removeLocked(i)
	m.unlockAndNotify(m.commitLocked())
	return Applied
}

func (m *Manager) removeLocked(i int) {
	delete(m.index, m.items[i].ProductID)
	m.items = append(m.items[:i], m.items[i+1:]...)
	for j := i; j < len(m.items); j++ {
		m.index[m.items[j].ProductID] = j
	}
}

// Increment adds one unit unless the line is at its ceiling.
func (m *Manager) Increment(id int64) Outcome {
	return m.step(id, func(it *model.LineItem) Outcome {
		if it.Quantity >= it.MaxQuantity {
			return AtMaximum
		}
		it.Quantity++
		return Applied
	})
}

// IncrementBeyondCap adds one unit and lifts the ceiling when needed. It is
// the explicit override a caller uses after the user confirms exceeding the
// catalog limit; Increment never does this on its own.
func (m *Manager) IncrementBeyondCap(id int64) Outcome {
	return m.step(id, func(it *model.LineItem) Outcome {
		it.Quantity++
		if it.Quantity > it.MaxQuantity {
			it.MaxQuantity = it.Quantity
		}
		return Applied
	})
}

// Decrement removes one unit unless the line is at 1. It never removes the
// line; that takes an explicit Remove.
func (m *Manager) Decrement(id int64) Outcome {
	return m.step(id, func(it *model.LineItem) Outcome {
		if it.Quantity <= 1 {
			return AtMinimum
		}
		it.Quantity--
		return Applied
	})
}

func (m *Manager) step(id int64, fn func(*model.LineItem) Outcome) Outcome {
	m.mu.Lock()
	i, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return NotFound
	}
	out := fn(&m.items[i])
	if out != Applied {
		m.mu.Unlock()
		return out
	}
	m.unlockAndNotify(m.commitLocked())
	return out
}

// Deduct takes submitted lines out of the cart: each line's quantity drops by
// the submitted amount and lines that reach zero are removed. Lines added or
// raised after the submission was read are kept.
func (m *Manager) Deduct(submitted []model.LineItem) Outcome {
	m.mu.Lock()
	changed := false
	for _, sub := range submitted {
		i, ok := m.index[sub.ProductID]
		if !ok || sub.Quantity < 1 {
			continue
		}
		changed = true
		if m.items[i].Quantity > sub.Quantity {
			m.items[i].Quantity -= sub.Quantity
			continue
		}
		m.removeLocked(i)
	}
	if !changed {
		m.mu.Unlock()
		return NotFound
	}
	m.unlockAndNotify(m.commitLocked())
	return Applied
}

// Reset empties the cart.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.items = nil
	m.index = make(map[int64]int)
	m.unlockAndNotify(m.commitLocked())
}

// ItemCount returns the sum of quantities across all lines.
func (m *Manager) ItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return countOf(m.items)
}

// Items returns a copy of the lines in insertion order.
func (m *Manager) Items() []model.LineItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyItems(m.items)
}

// Item returns the line for id.
func (m *Manager) Item(id int64) (model.LineItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return model.LineItem{}, false
	}
	return m.items[i], true
}

// Snapshot returns items and count read under one lock.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Items: copyItems(m.items), ItemCount: countOf(m.items), Version: m.version}
}

// Total returns the sum of price times quantity.
func (m *Manager) Total() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return TotalOf(m.items)
}

// TotalOf prices a list of lines.
func TotalOf(items []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Subscribe registers fn for post-mutation snapshots and returns a func that
// unregisters it.
func (m *Manager) Subscribe(fn Observer) (cancel func()) {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()
	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// commitLocked checks invariants, bumps the version and captures the snapshot
// to publish. The caller holds the write lock.
func (m *Manager) commitLocked() Snapshot {
	checkInvariants(m.items, m.index)
	m.version++
	return Snapshot{Items: copyItems(m.items), ItemCount: countOf(m.items), Version: m.version}
}

// unlockAndNotify releases the write lock, then delivers s once every earlier
// version has been delivered. Observers run without any cart lock held.
func (m *Manager) unlockAndNotify(s Snapshot) {
	m.mu.Unlock()

	m.pubMu.Lock()
	for m.delivered != s.Version-1 {
		m.pubCond.Wait()
	}
	m.pubMu.Unlock()

	m.obsMu.Lock()
	fns := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}

	m.pubMu.Lock()
	m.delivered = s.Version
	m.pubCond.Broadcast()
	m.pubMu.Unlock()
}

// normalize forces a fresh candidate into [1, MaxQuantity].
func normalize(it model.LineItem) model.LineItem {
	if it.Quantity < 1 {
		it.Quantity = 1
	}
	if it.MaxQuantity < 1 {
		it.MaxQuantity = it.Quantity
	}
	if it.Quantity > it.MaxQuantity {
		it.Quantity = it.MaxQuantity
	}
	return it
}

func countOf(items []model.LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func copyItems(items []model.LineItem) []model.LineItem {
	out := make([]model.LineItem, len(items))
	copy(out, items)
	return out
}
