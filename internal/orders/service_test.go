package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/realtime"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

func setup(t *testing.T) (*Service, *realtime.Hub) {
	t.Helper()
	st := store.New()
	st.UpsertProduct(model.Product{ID: 1, Title: "Tea", Stock: 5, MaxQuantity: 5})
	_, err := st.CreateOrder(context.Background(), model.Order{
		Slug: "ORD-1", UserID: "u1", Status: model.OrderPending, ReceiptStatus: model.ReceiptPending,
		Lines: []model.OrderLine{{ProductID: 1, Title: "Tea", Quantity: 1}},
	})
	require.NoError(t, err)
	hub := realtime.NewHub(4)
	t.Cleanup(hub.Close)
	return NewService(st, hub), hub
}

func TestGetScopedToOwner(t *testing.T) {
	svc, _ := setup(t)
	o, err := svc.Get(context.Background(), "u1", "ORD-1")
	require.NoError(t, err)
	assert.Len(t, o.Lines, 1)

	_, err = svc.Get(context.Background(), "u2", "ORD-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(context.Background(), "u1", "ORD-404")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateStatusPublishes(t *testing.T) {
	svc, hub := setup(t)
	sub := hub.Subscribe("ORD-1")
	defer sub.Close()

	o, err := svc.UpdateStatus(context.Background(), "ORD-1", model.OrderApproved)
	require.NoError(t, err)
	assert.Equal(t, model.OrderApproved, o.Status)
	ev := <-sub.C
	assert.Equal(t, model.OrderApproved, ev.Status)

	_, err = svc.UpdateReceiptStatus(context.Background(), "ORD-1", model.ReceiptReceived)
	require.NoError(t, err)
	ev = <-sub.C
	assert.Equal(t, model.ReceiptReceived, ev.ReceiptStatus)
}

func TestUpdateStatusValidation(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.UpdateStatus(context.Background(), "ORD-1", "Shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateReceiptStatus(context.Background(), "ORD-1", "Maybe")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateStatus(context.Background(), "ORD-404", model.OrderCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProofsScopedToOwner(t *testing.T) {
	st := store.New()
	st.UpsertProduct(model.Product{ID: 1, Title: "Tea", Stock: 5, MaxQuantity: 5})
	o, err := st.CreateOrder(context.Background(), model.Order{
		Slug: "ORD-P", UserID: "u1", Lines: []model.OrderLine{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = st.AddProof(model.PaymentProof{OrderID: o.ID, UserID: "u1", FileURL: "https://cdn.example/a.png"})
	require.NoError(t, err)
	_, err = st.AddProof(model.PaymentProof{OrderID: o.ID, UserID: "u1", FileURL: "https://cdn.example/b.png"})
	require.NoError(t, err)
	svc := NewService(st, nil)

	proofs, err := svc.Proofs(context.Background(), "u1", "ORD-P")
	require.NoError(t, err)
	require.Len(t, proofs, 2)
	assert.Equal(t, "https://cdn.example/a.png", proofs[0].FileURL)
	assert.Equal(t, o.ID, proofs[1].OrderID)

	_, err = svc.Proofs(context.Background(), "u2", "ORD-P")
	assert.ErrorIs(t, err, ErrNotFound)
}
