// Package orders lets shoppers track their orders and lets staff move them
// through fulfilment.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
	"github.com/fairyhunter13/storefront-cart-service/internal/realtime"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrInvalidStatus = errors.New("invalid status")
)

type Service struct {
	repo store.Orders
	hub  *realtime.Hub
}

func NewService(repo store.Orders, hub *realtime.Hub) *Service {
	return &Service{repo: repo, hub: hub}
}

func (s *Service) List(ctx context.Context, userID string) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, userID)
}

// Get returns the order only when it belongs to userID; other users' orders
// look absent.
func (s *Service) Get(ctx context.Context, userID, slug string) (model.Order, error) {
	o, err := s.repo.OrderBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) || (err == nil && o.UserID != userID) {
		return model.Order{}, ErrNotFound
	}
	return o, err
}

// Proofs lists the payment proofs of one of userID's orders.
func (s *Service) Proofs(ctx context.Context, userID, slug string) ([]model.PaymentProof, error) {
	o, err := s.Get(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProofs(ctx, o.ID)
}

func (s *Service) UpdateStatus(ctx context.Context, slug string, st model.OrderStatus) (model.Order, error) {
	if !st.Valid() {
		return model.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, st)
	}
	o, err := s.repo.UpdateStatus(ctx, slug, st)
	return s.published(o, err)
}

func (s *Service) UpdateReceiptStatus(ctx context.Context, slug string, st model.ReceiptStatus) (model.Order, error) {
	if !st.Valid() {
		return model.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, st)
	}
	o, err := s.repo.UpdateReceiptStatus(ctx, slug, st)
	return s.published(o, err)
}

func (s *Service) published(o model.Order, err error) (model.Order, error) {
	if errors.Is(err, store.ErrNotFound) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	if s.hub != nil {
		s.hub.Publish(model.StatusEvent{OrderSlug: o.Slug, Status: o.Status, ReceiptStatus: o.ReceiptStatus})
	}
	obs.Logger.Infow("order_status_changed", "order_slug", o.Slug, "status", o.Status, "receipt_status", o.ReceiptStatus)
	return o, nil
}
