// Package model defines domain types used by the service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product's entry in a cart.
type LineItem struct {
	ProductID   int64           `json:"product_id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	MaxQuantity int             `json:"max_quantity"`
}

// Product is a catalog entry as supplied by the backend.
type Product struct {
	ID          int64           `json:"id" db:"id" yaml:"id"`
	Slug        string          `json:"slug" db:"slug" yaml:"slug"`
	Title       string          `json:"title" db:"title" yaml:"title"`
	Price       decimal.Decimal `json:"price" db:"price" yaml:"price"`
	Stock       int             `json:"stock" db:"stock" yaml:"stock"`
	MaxQuantity int             `json:"max_quantity" db:"max_quantity" yaml:"max_quantity"`
	CategoryID  int64           `json:"category_id" db:"category_id" yaml:"category_id"`
	HeroImage   string          `json:"hero_image,omitempty" db:"hero_image" yaml:"hero_image"`
}

// Category groups products.
type Category struct {
	ID   int64  `json:"id" db:"id" yaml:"id"`
	Slug string `json:"slug" db:"slug" yaml:"slug"`
	Name string `json:"name" db:"name" yaml:"name"`
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderApproved  OrderStatus = "Approved"
	OrderCompleted OrderStatus = "Completed"
	OrderCancelled OrderStatus = "Cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderApproved, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// ReceiptStatus tracks the review of a submitted proof of payment.
type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "Pending"
	ReceiptReceived ReceiptStatus = "Received"
	ReceiptRejected ReceiptStatus = "Rejected"
)

// Valid reports whether s is a known receipt status.
func (s ReceiptStatus) Valid() bool {
	switch s {
	case ReceiptPending, ReceiptReceived, ReceiptRejected:
		return true
	}
	return false
}

// Order is a placed order and its lines.
type Order struct {
	ID             int64           `json:"id" db:"id"`
	Slug           string          `json:"slug" db:"slug"`
	UserID         string          `json:"user_id" db:"user_id"`
	Status         OrderStatus     `json:"status" db:"status"`
	ReceiptStatus  ReceiptStatus   `json:"receipt_status" db:"receipt_status"`
	TotalPrice     decimal.Decimal `json:"total_price" db:"total_price"`
	IdempotencyKey string          `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	Lines          []OrderLine     `json:"lines,omitempty" db:"-"`
}

// OrderLine is one product row of an order.
type OrderLine struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"order_id" db:"order_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Title     string          `json:"title" db:"title"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity  int             `json:"quantity" db:"quantity"`
}

// StatusEvent is published whenever an order's status changes.
type StatusEvent struct {
	Sequence      uint64        `json:"sequence"`
	OrderSlug     string        `json:"order_slug"`
	Status        OrderStatus   `json:"status"`
	ReceiptStatus ReceiptStatus `json:"receipt_status"`
	At            time.Time     `json:"at"`
}

// PaymentProof is an uploaded proof of payment attached to an order.
type PaymentProof struct {
	ID        int64     `json:"id" db:"id"`
	OrderID   int64     `json:"order_id" db:"order_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	FileURL   string    `json:"file_url" db:"file_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
