// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/storefront-cart-service/internal/catalog"
	"github.com/fairyhunter13/storefront-cart-service/internal/checkout"
	"github.com/fairyhunter13/storefront-cart-service/internal/orders"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, jsonError{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps domain errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, catalog.ErrInvalidQuantity), errors.Is(err, orders.ErrInvalidStatus):
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		WriteJSONError(w, http.StatusUnprocessableEntity, "empty_cart", "")
	case errors.Is(err, checkout.ErrProductNotFound):
		WriteJSONError(w, http.StatusConflict, "product_not_found", err.Error())
	case errors.Is(err, checkout.ErrInsufficientStock):
		WriteJSONError(w, http.StatusConflict, "insufficient_stock", err.Error())
	default:
		WriteJSONError(w, http.StatusBadGateway, "backend_error", err.Error())
	}
}
