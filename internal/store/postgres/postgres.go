// Package postgres implements the store ports on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

// Schema creates the tables the adapter expects.
//
//go:embed schema.sql
var Schema string

const (
	productCols = `id, slug, title, price, stock, max_quantity, COALESCE(category_id, 0) AS category_id, COALESCE(hero_image, '') AS hero_image`
	orderCols   = `id, slug, user_id, status, receipt_status, total_price, COALESCE(idempotency_key, '') AS idempotency_key, created_at`
	lineCols    = `id, order_id, product_id, title, unit_price, quantity`

	uniqueViolation = "23505"
)

// Store is a sqlx-backed store.Store.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db), nil
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	err := s.db.SelectContext(ctx, &out, `SELECT `+productCols+` FROM product ORDER BY id`)
	return out, err
}

func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := s.db.SelectContext(ctx, &out, `SELECT id, slug, name FROM category ORDER BY id`)
	return out, err
}

func (s *Store) Product(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := s.db.GetContext(ctx, &p, `SELECT `+productCols+` FROM product WHERE id = $1`, id)
	return p, notFound(err)
}

func (s *Store) ProductBySlug(ctx context.Context, slug string) (model.Product, error) {
	var p model.Product
	err := s.db.GetContext(ctx, &p, `SELECT `+productCols+` FROM product WHERE slug = $1`, slug)
	return p, notFound(err)
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (model.Category, error) {
	var c model.Category
	err := s.db.GetContext(ctx, &c, `SELECT id, slug, name FROM category WHERE slug = $1`, slug)
	return c, notFound(err)
}

func (s *Store) ProductsByCategory(ctx context.Context, categoryID int64) ([]model.Product, error) {
	var out []model.Product
	err := s.db.SelectContext(ctx, &out, `SELECT `+productCols+` FROM product WHERE category_id = $1 ORDER BY id`, categoryID)
	return out, err
}

type stockNeed struct {
	productID int64
	qty       int
}

// CreateOrder decrements stock, inserts the order and its lines in one
// transaction. Product rows are locked in product id order before their
// stock is checked.
func (s *Store) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	agg := make(map[int64]int, len(o.Lines))
	for _, l := range o.Lines {
		agg[l.ProductID] += l.Quantity
	}
	needs := make([]stockNeed, 0, len(agg))
	for id, q := range agg {
		needs = append(needs, stockNeed{productID: id, qty: q})
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].productID < needs[j].productID })

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, n := range needs {
		var stock int
		err := tx.QueryRowxContext(ctx, `SELECT stock FROM product WHERE id = $1 FOR UPDATE`, n.productID).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, fmt.Errorf("product %d: %w", n.productID, store.ErrNotFound)
		}
		if err != nil {
			return model.Order{}, fmt.Errorf("lock product %d: %w", n.productID, err)
		}
		if stock < n.qty {
			return model.Order{}, fmt.Errorf("product %d: %w", n.productID, store.ErrInsufficientStock)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE product SET stock = stock - $1 WHERE id = $2`, n.qty, n.productID); err != nil {
			return model.Order{}, fmt.Errorf("decrement stock %d: %w", n.productID, err)
		}
	}

	key := sql.NullString{String: o.IdempotencyKey, Valid: o.IdempotencyKey != ""}
	row := tx.QueryRowxContext(ctx,
		`INSERT INTO orders (slug, user_id, status, receipt_status, total_price, idempotency_key) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		o.Slug, o.UserID, o.Status, o.ReceiptStatus, o.TotalPrice, key)
	if err := row.Scan(&o.ID, &o.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.Order{}, store.ErrDuplicateKey
		}
		return model.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO order_item (order_id, product_id, title, unit_price, quantity) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			l.OrderID, l.ProductID, l.Title, l.UnitPrice, l.Quantity).Scan(&l.ID)
		if err != nil {
			return model.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (s *Store) OrderByIdempotencyKey(ctx context.Context, userID, key string) (model.Order, error) {
	var o model.Order
	err := s.db.GetContext(ctx, &o, `SELECT `+orderCols+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	if err != nil {
		return model.Order{}, notFound(err)
	}
	return s.withLines(ctx, o)
}

func (s *Store) OrderBySlug(ctx context.Context, slug string) (model.Order, error) {
	var o model.Order
	err := s.db.GetContext(ctx, &o, `SELECT `+orderCols+` FROM orders WHERE slug = $1`, slug)
	if err != nil {
		return model.Order{}, notFound(err)
	}
	return s.withLines(ctx, o)
}

func (s *Store) withLines(ctx context.Context, o model.Order) (model.Order, error) {
	err := s.db.SelectContext(ctx, &o.Lines, `SELECT `+lineCols+` FROM order_item WHERE order_id = $1 ORDER BY id`, o.ID)
	return o, err
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	var out []model.Order
	err := s.db.SelectContext(ctx, &out, `SELECT `+orderCols+` FROM orders WHERE user_id = $1 ORDER BY id DESC`, userID)
	return out, err
}

func (s *Store) UpdateStatus(ctx context.Context, slug string, st model.OrderStatus) (model.Order, error) {
	var o model.Order
	err := s.db.GetContext(ctx, &o, `UPDATE orders SET status = $1 WHERE slug = $2 RETURNING `+orderCols, st, slug)
	return o, notFound(err)
}

func (s *Store) UpdateReceiptStatus(ctx context.Context, slug string, st model.ReceiptStatus) (model.Order, error) {
	var o model.Order
	err := s.db.GetContext(ctx, &o, `UPDATE orders SET receipt_status = $1 WHERE slug = $2 RETURNING `+orderCols, st, slug)
	return o, notFound(err)
}

func (s *Store) ListProofs(ctx context.Context, orderID int64) ([]model.PaymentProof, error) {
	out := []model.PaymentProof{}
	err := s.db.SelectContext(ctx, &out, `SELECT id, order_id, user_id, file_url, created_at FROM proof_of_payment WHERE order_id = $1 ORDER BY id`, orderID)
	return out, err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
