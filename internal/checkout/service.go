// Package checkout turns a cart into a placed order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/storefront-cart-service/internal/cart"
	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
	"github.com/fairyhunter13/storefront-cart-service/internal/realtime"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDuplicateSubmission = errors.New("order already submitted")
)

type Service struct {
	catalog store.Catalog
	orders  store.Orders
	hub     *realtime.Hub

	maxConcurrent int
	newSlug       func() string
}

func NewService(catalog store.Catalog, orders store.Orders, hub *realtime.Hub, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		catalog:       catalog,
		orders:        orders,
		hub:           hub,
		maxConcurrent: maxConcurrent,
		newSlug:       NewOrderSlug,
	}
}

// NewOrderSlug returns a short human-facing order reference.
func NewOrderSlug() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Quote prices items against the current catalog and checks stock.
func (s *Service) Quote(ctx context.Context, items []model.LineItem) ([]model.OrderLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyCart
	}
	lines := make([]model.OrderLine, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			p, err := s.catalog.Product(ctx, it.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("product %d: %w", it.ProductID, ErrProductNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to get product %d: %w", it.ProductID, err)
			}
			if p.Stock < it.Quantity {
				return fmt.Errorf("product %d has %d left: %w", it.ProductID, p.Stock, ErrInsufficientStock)
			}
			lines[idx] = model.OrderLine{
				ProductID: p.ID,
				Title:     p.Title,
				UnitPrice: p.Price,
				Quantity:  it.Quantity,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return lines, total, nil
}

// PlaceOrder submits the cart as an order for userID. The submitted lines are
// taken out of the cart only when the order, its lines and the stock
// decrement all succeeded; on any error the cart is left as it was. Lines
// added while the order was being placed stay in the cart. A repeated
// idempotency key returns the earlier order together with
// ErrDuplicateSubmission.
func (s *Service) PlaceOrder(ctx context.Context, userID, idempotencyKey string, c *cart.Manager) (model.Order, error) {
	if idempotencyKey != "" {
		prev, err := s.orders.OrderByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return prev, ErrDuplicateSubmission
		}
		if !errors.Is(err, store.ErrNotFound) {
			return model.Order{}, fmt.Errorf("check idempotency key: %w", err)
		}
	}

	items := c.Items()
	lines, total, err := s.Quote(ctx, items)
	if err != nil {
		s.fail(userID, err)
		return model.Order{}, err
	}

	o, err := s.orders.CreateOrder(ctx, model.Order{
		Slug:           s.newSlug(),
		UserID:         userID,
		Status:         model.OrderPending,
		ReceiptStatus:  model.ReceiptPending,
		TotalPrice:     total,
		IdempotencyKey: idempotencyKey,
		Lines:          lines,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateKey):
		prev, perr := s.orders.OrderByIdempotencyKey(ctx, userID, idempotencyKey)
		if perr != nil {
			return model.Order{}, ErrDuplicateSubmission
		}
		return prev, ErrDuplicateSubmission
	case errors.Is(err, store.ErrInsufficientStock):
		err = fmt.Errorf("create order: %w", ErrInsufficientStock)
		s.fail(userID, err)
		return model.Order{}, err
	case errors.Is(err, store.ErrNotFound):
		err = fmt.Errorf("create order: %w", ErrProductNotFound)
		s.fail(userID, err)
		return model.Order{}, err
	case err != nil:
		err = fmt.Errorf("create order: %w", err)
		s.fail(userID, err)
		return model.Order{}, err
	}

	c.Deduct(items)
	obs.OrdersPlaced.Inc()
	if s.hub != nil {
		s.hub.Publish(model.StatusEvent{OrderSlug: o.Slug, Status: o.Status, ReceiptStatus: o.ReceiptStatus})
	}
	obs.Logger.Infow("order_placed", "user_id", userID, "order_slug", o.Slug, "total", o.TotalPrice.String(), "lines", len(o.Lines))
	return o, nil
}

func (s *Service) fail(userID string, err error) {
	reason := "backend"
	switch {
	case errors.Is(err, ErrEmptyCart):
		reason = "empty_cart"
	case errors.Is(err, ErrProductNotFound):
		reason = "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		reason = "insufficient_stock"
	}
	obs.OrdersFailed.WithLabelValues(reason).Inc()
	obs.Logger.Warnw("order_failed", "user_id", userID, "reason", reason, "error", err)
}
