package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
)

// Memory is an in-process backend holding the catalog and placed orders.
type Memory struct {
	mu         sync.RWMutex
	products   map[int64]model.Product
	categories map[int64]model.Category
	orders     map[string]model.Order // by slug
	byKey      map[string]string      // user+key -> slug
	proofs     map[int64][]model.PaymentProof
	nextOrder  int64
	nextLine   int64
	nextProof  int64
	now        func() time.Time
}

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{
		products:   make(map[int64]model.Product),
		categories: make(map[int64]model.Category),
		orders:     make(map[string]model.Order),
		byKey:      make(map[string]string),
		proofs:     make(map[int64][]model.PaymentProof),
		now:        time.Now,
	}
}

// UpsertProduct replaces or inserts p.
func (s *Memory) UpsertProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// UpsertCategory replaces or inserts c.
func (s *Memory) UpsertCategory(c model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *Memory) ListProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) ListCategories(_ context.Context) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) Product(_ context.Context, id int64) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, ErrNotFound
	}
	return p, nil
}

func (s *Memory) ProductBySlug(_ context.Context, slug string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.Product{}, ErrNotFound
}

func (s *Memory) CategoryBySlug(_ context.Context, slug string) (model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return model.Category{}, ErrNotFound
}

func (s *Memory) ProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error) {
	all, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateOrder checks stock for every line before touching anything, then
// decrements stock and records the order.
func (s *Memory) CreateOrder(_ context.Context, o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IdempotencyKey != "" {
		if _, ok := s.byKey[o.UserID+"\x00"+o.IdempotencyKey]; ok {
			return model.Order{}, ErrDuplicateKey
		}
	}
	need := make(map[int64]int, len(o.Lines))
	for _, l := range o.Lines {
		need[l.ProductID] += l.Quantity
	}
	for id, q := range need {
		p, ok := s.products[id]
		if !ok {
			return model.Order{}, ErrNotFound
		}
		if p.Stock < q {
			return model.Order{}, ErrInsufficientStock
		}
	}
	for id, q := range need {
		p := s.products[id]
		p.Stock -= q
		s.products[id] = p
	}
	s.nextOrder++
	o.ID = s.nextOrder
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	lines := make([]model.OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		s.nextLine++
		l.ID = s.nextLine
		l.OrderID = o.ID
		lines[i] = l
	}
	o.Lines = lines
	s.orders[o.Slug] = o
	if o.IdempotencyKey != "" {
		s.byKey[o.UserID+"\x00"+o.IdempotencyKey] = o.Slug
	}
	return o, nil
}

func (s *Memory) OrderByIdempotencyKey(_ context.Context, userID, key string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slug, ok := s.byKey[userID+"\x00"+key]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return s.orders[slug], nil
}

func (s *Memory) OrderBySlug(_ context.Context, slug string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[slug]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Memory) ListOrders(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Memory) UpdateStatus(_ context.Context, slug string, st model.OrderStatus) (model.Order, error) {
	return s.mutateOrder(slug, func(o *model.Order) { o.Status = st })
}

func (s *Memory) UpdateReceiptStatus(_ context.Context, slug string, st model.ReceiptStatus) (model.Order, error) {
	return s.mutateOrder(slug, func(o *model.Order) { o.ReceiptStatus = st })
}

func (s *Memory) mutateOrder(slug string, fn func(*model.Order)) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[slug]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	fn(&o)
	s.orders[slug] = o
	return o, nil
}

// AddProof records a payment proof for an existing order.
func (s *Memory) AddProof(p model.PaymentProof) (model.PaymentProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known := false
	for _, o := range s.orders {
		if o.ID == p.OrderID {
			known = true
			break
		}
	}
	if !known {
		return model.PaymentProof{}, ErrNotFound
	}
	s.nextProof++
	p.ID = s.nextProof
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	s.proofs[p.OrderID] = append(s.proofs[p.OrderID], p)
	return p, nil
}

func (s *Memory) ListProofs(_ context.Context, orderID int64) ([]model.PaymentProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PaymentProof, len(s.proofs[orderID]))
	copy(out, s.proofs[orderID])
	return out, nil
}
