package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging)

	r.Get("/products", app.overviewHandler)
	r.Get("/products/{slug}", app.productHandler)
	r.Get("/categories/{slug}", app.categoryHandler)

	r.Route("/cart", func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", app.getCartHandler)
		r.Delete("/", app.resetCartHandler)
		r.Get("/count", app.cartCountHandler)
		r.Post("/items", app.addItemHandler)
		r.Delete("/items/{id}", app.removeItemHandler)
		r.Post("/items/{id}/increment", app.incrementItemHandler)
		r.Post("/items/{id}/decrement", app.decrementItemHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.With(app.limiter.Handler).Post("/checkout", app.checkoutHandler)
		r.Get("/orders", app.listOrdersHandler)
		r.Get("/orders/{slug}", app.getOrderHandler)
		r.Get("/orders/{slug}/proofs", app.listProofsHandler)
		r.Get("/orders/{slug}/stream", app.streamOrderHandler)
	})
	// Staff routes. Authorisation is enforced by the fronting gateway.
	r.Patch("/orders/{slug}/status", app.updateStatusHandler)
	r.Patch("/orders/{slug}/receipt-status", app.updateReceiptStatusHandler)

	r.Get("/healthz", app.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", app.openapiHandler)
	r.Get("/docs", app.docsHandler)
	return r
}

func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionKey(r) == "" {
			WriteJSONError(w, http.StatusUnauthorized, "missing_session", headerSessionID+" or "+headerUserID+" required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerUserID) == "" {
			WriteJSONError(w, http.StatusUnauthorized, "unauthenticated", headerUserID+" required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
