package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/fairyhunter13/storefront-cart-service/internal/checkout"
	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
)

const streamWriteTimeout = 10 * time.Second

func (a *App) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	userID := r.Header.Get(headerUserID)
	o, err := a.Checkout.PlaceOrder(r.Context(), userID, r.Header.Get("Idempotency-Key"), a.cartFor(r))
	if errors.Is(err, checkout.ErrDuplicateSubmission) {
		WriteJSONError(w, http.StatusConflict, "duplicate_submission", o.Slug)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (a *App) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := a.Orders.List(r.Context(), r.Header.Get(headerUserID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.Get(r.Context(), r.Header.Get(headerUserID), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *App) listProofsHandler(w http.ResponseWriter, r *http.Request) {
	proofs, err := a.Orders.Proofs(r.Context(), r.Header.Get(headerUserID), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if proofs == nil {
		proofs = []model.PaymentProof{}
	}
	writeJSON(w, http.StatusOK, proofs)
}

type statusRequest struct {
	Status string `json:"status"`
}

func decodeStatus(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req statusRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return "", false
	}
	return req.Status, true
}

func (a *App) updateStatusHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	o, err := a.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "slug"), model.OrderStatus(st))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *App) updateReceiptStatusHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	o, err := a.Orders.UpdateReceiptStatus(r.Context(), chi.URLParam(r, "slug"), model.ReceiptStatus(st))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// streamOrderHandler upgrades to a websocket and pushes status events for one
// of the caller's orders, starting with its current state.
func (a *App) streamOrderHandler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	o, err := a.Orders.Get(r.Context(), r.Header.Get(headerUserID), slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sub := a.Hub.Subscribe(slug)
	defer sub.Close()

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		obs.Logger.Warnw("stream_upgrade_failed", "order_slug", slug, "error", err)
		return
	}
	defer conn.Close()

	// The read side only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev model.StatusEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(ev)
	}
	if err := send(model.StatusEvent{OrderSlug: o.Slug, Status: o.Status, ReceiptStatus: o.ReceiptStatus, At: time.Now().UTC()}); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(time.Second))
				return
			}
			if err := send(ev); err != nil {
				return
			}
		}
	}
}
