package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

var productColumns = []string{"id", "slug", "title", "price", "stock", "max_quantity", "category_id", "hero_image"}

func TestListProducts(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM product ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow(1, "juice", "Juice", "2500.50", 4, 3, 1, "").
			AddRow(2, "chips", "Chips", "1000", 9, 10, 2, "x.png"))

	ps, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.True(t, ps[0].Price.Equal(decimal.RequireFromString("2500.5")))
	assert.Equal(t, 3, ps[0].MaxQuantity)
	assert.Equal(t, "x.png", ps[1].HeroImage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM product WHERE id = \$1`).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)
	_, err := s.Product(context.Background(), 7)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func sampleOrder() model.Order {
	return model.Order{
		Slug:           "ord-1",
		UserID:         "u1",
		Status:         model.OrderPending,
		ReceiptStatus:  model.ReceiptPending,
		TotalPrice:     decimal.RequireFromString("6000"),
		IdempotencyKey: "k1",
		Lines: []model.OrderLine{
			{ProductID: 2, Title: "Chips", UnitPrice: decimal.RequireFromString("1000"), Quantity: 1},
			{ProductID: 1, Title: "Juice", UnitPrice: decimal.RequireFromString("2500"), Quantity: 2},
		},
	}
}

func expectLock(mock sqlmock.Sqlmock, id int64, stock int) {
	mock.ExpectQuery(`SELECT stock FROM product WHERE id = \$1 FOR UPDATE`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(stock))
}

func TestCreateOrderCommits(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	expectLock(mock, 1, 5)
	mock.ExpectExec(`UPDATE product SET stock = stock - \$1 WHERE id = \$2`).
		WithArgs(2, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	expectLock(mock, 2, 3)
	mock.ExpectExec(`UPDATE product SET stock`).
		WithArgs(1, int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs("ord-1", "u1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(41, created))
	mock.ExpectQuery(`INSERT INTO order_item`).
		WithArgs(int64(41), int64(2), "Chips", sqlmock.AnyArg(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectQuery(`INSERT INTO order_item`).
		WithArgs(int64(41), int64(1), "Juice", sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectCommit()

	o, err := s.CreateOrder(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, int64(41), o.ID)
	assert.Equal(t, created, o.CreatedAt)
	assert.Equal(t, int64(100), o.Lines[0].ID)
	assert.Equal(t, int64(41), o.Lines[1].OrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	expectLock(mock, 1, 1)
	mock.ExpectRollback()

	_, err := s.CreateOrder(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderDeletedProductIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT stock FROM product WHERE id = \$1 FOR UPDATE`).WithArgs(int64(1)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.CreateOrder(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, store.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderDuplicateKey(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	expectLock(mock, 1, 5)
	mock.ExpectExec(`UPDATE product SET stock`).WillReturnResult(sqlmock.NewResult(0, 1))
	expectLock(mock, 2, 5)
	mock.ExpectExec(`UPDATE product SET stock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	_, err := s.CreateOrder(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "slug", "user_id", "status", "receipt_status", "total_price", "idempotency_key", "created_at"}
	mock.ExpectQuery(`UPDATE orders SET status = \$1 WHERE slug = \$2 RETURNING`).
		WithArgs(sqlmock.AnyArg(), "ord-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(41, "ord-1", "u1", "Approved", "Pending", "6000", "", time.Now()))

	o, err := s.UpdateStatus(context.Background(), "ord-1", model.OrderApproved)
	require.NoError(t, err)
	assert.Equal(t, model.OrderApproved, o.Status)

	mock.ExpectQuery(`UPDATE orders SET receipt_status`).WillReturnError(sql.ErrNoRows)
	_, err = s.UpdateReceiptStatus(context.Background(), "nope", model.ReceiptReceived)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderBySlugLoadsLines(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "slug", "user_id", "status", "receipt_status", "total_price", "idempotency_key", "created_at"}
	mock.ExpectQuery(`FROM orders WHERE slug = \$1`).WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(41, "ord-1", "u1", "Pending", "Pending", "6000", "k1", time.Now()))
	mock.ExpectQuery(`FROM order_item WHERE order_id = \$1`).WithArgs(int64(41)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "title", "unit_price", "quantity"}).
			AddRow(100, 41, 2, "Chips", "1000", 1))

	o, err := s.OrderBySlug(context.Background(), "ord-1")
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Chips", o.Lines[0].Title)
	assert.Equal(t, "k1", o.IdempotencyKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProofs(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM proof_of_payment WHERE order_id = \$1 ORDER BY id`).WithArgs(int64(41)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "user_id", "file_url", "created_at"}).
			AddRow(1, 41, "u1", "https://cdn.example/a.png", time.Now()))

	proofs, err := s.ListProofs(context.Background(), 41)
	require.NoError(t, err)
	require.Len(t, proofs, 1)
	assert.Equal(t, "https://cdn.example/a.png", proofs[0].FileURL)
	require.NoError(t, mock.ExpectationsWereMet())
}
