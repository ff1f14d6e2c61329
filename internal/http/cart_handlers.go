package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/storefront-cart-service/internal/cart"
	"github.com/fairyhunter13/storefront-cart-service/internal/model"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
)

type cartView struct {
	Outcome   string           `json:"outcome,omitempty"`
	Items     []model.LineItem `json:"items"`
	ItemCount int              `json:"item_count"`
	Total     decimal.Decimal  `json:"total"`
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

func viewOf(s cart.Snapshot) cartView {
	return cartView{Items: s.Items, ItemCount: s.ItemCount, Total: cart.TotalOf(s.Items)}
}

func (a *App) cartFor(r *http.Request) *cart.Manager {
	return a.Carts.Get(sessionKey(r))
}

// respondOutcome writes the cart after a mutation. NotFound is a 404; the
// other outcomes are 200 so a client can show "limit reached" feedback.
func (a *App) respondOutcome(w http.ResponseWriter, op string, c *cart.Manager, out cart.Outcome) {
	obs.CartMutations.WithLabelValues(op, out.String()).Inc()
	v := viewOf(c.Snapshot())
	v.Outcome = out.String()
	status := http.StatusOK
	if out == cart.NotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, v)
}

func (a *App) getCartHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(a.cartFor(r).Snapshot()))
}

func (a *App) cartCountHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"item_count": a.cartFor(r).ItemCount()})
}

// resetCartHandler empties the cart and forgets the session's entry; the
// next request starts a fresh one.
func (a *App) resetCartHandler(w http.ResponseWriter, r *http.Request) {
	c := a.cartFor(r)
	c.Reset()
	a.Carts.Drop(sessionKey(r))
	a.respondOutcome(w, "reset", c, cart.Applied)
}

func (a *App) addItemHandler(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req addItemRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ProductID == 0 {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	candidate, err := a.Catalog.Candidate(r.Context(), req.ProductID, qty)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	c := a.cartFor(r)
	a.respondOutcome(w, "add", c, c.Add(candidate))
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "id must be an integer")
		return 0, false
	}
	return id, true
}

func (a *App) removeItemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	c := a.cartFor(r)
	a.respondOutcome(w, "remove", c, c.Remove(id))
}

// incrementItemHandler honours ?override=true as the user's explicit consent
// to go past the catalog limit.
func (a *App) incrementItemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	c := a.cartFor(r)
	if override, _ := strconv.ParseBool(r.URL.Query().Get("override")); override {
		a.respondOutcome(w, "increment_override", c, c.IncrementBeyondCap(id))
		return
	}
	a.respondOutcome(w, "increment", c, c.Increment(id))
}

func (a *App) decrementItemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	c := a.cartFor(r)
	a.respondOutcome(w, "decrement", c, c.Decrement(id))
}
