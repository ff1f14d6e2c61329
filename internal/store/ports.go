// Package store declares the data-access ports the storefront needs from
// its managed backend and provides the in-memory adapter. The postgres
// subpackage holds the SQL adapter.
package store

import (
	"context"
	"errors"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateKey      = errors.New("duplicate idempotency key")
)

// Catalog reads products and categories.
type Catalog interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	Product(ctx context.Context, id int64) (model.Product, error)
	ProductBySlug(ctx context.Context, slug string) (model.Product, error)
	CategoryBySlug(ctx context.Context, slug string) (model.Category, error)
	ProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error)
}

// Orders persists orders. CreateOrder stores the order, its lines and the
// stock decrement as one unit: either all of it happens or none of it.
type Orders interface {
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	OrderByIdempotencyKey(ctx context.Context, userID, key string) (model.Order, error)
	OrderBySlug(ctx context.Context, slug string) (model.Order, error)
	ListOrders(ctx context.Context, userID string) ([]model.Order, error)
	UpdateStatus(ctx context.Context, slug string, s model.OrderStatus) (model.Order, error)
	UpdateReceiptStatus(ctx context.Context, slug string, s model.ReceiptStatus) (model.Order, error)
	// ListProofs returns the payment proofs of an order, oldest first.
	ListProofs(ctx context.Context, orderID int64) ([]model.PaymentProof, error)
}

// Store is a backend offering both ports.
type Store interface {
	Catalog
	Orders
}
