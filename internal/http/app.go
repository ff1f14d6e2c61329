package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fairyhunter13/storefront-cart-service/internal/cart"
	"github.com/fairyhunter13/storefront-cart-service/internal/catalog"
	"github.com/fairyhunter13/storefront-cart-service/internal/checkout"
	"github.com/fairyhunter13/storefront-cart-service/internal/config"
	httpopenapi "github.com/fairyhunter13/storefront-cart-service/internal/http/openapi"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
	"github.com/fairyhunter13/storefront-cart-service/internal/orders"
	"github.com/fairyhunter13/storefront-cart-service/internal/realtime"
)

type App struct {
	Cfg      config.Config
	Carts    *cart.Registry
	Catalog  *catalog.Service
	Checkout *checkout.Service
	Orders   *orders.Service
	Hub      *realtime.Hub

	limiter  *RateLimiter
	upgrader websocket.Upgrader
	closing  atomic.Bool
	started  time.Time
}

func NewApp(cfg config.Config, carts *cart.Registry, cat *catalog.Service, co *checkout.Service, ord *orders.Service, hub *realtime.Hub) *App {
	return &App{
		Cfg:      cfg,
		Carts:    carts,
		Catalog:  cat,
		Checkout: co,
		Orders:   ord,
		Hub:      hub,
		limiter:  NewRateLimiter(cfg.CheckoutRatePerSec, cfg.CheckoutBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

// StartShutdown makes checkout refuse new orders and ends live streams.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Hub.Close()
}

// SweepIdle evicts carts and checkout buckets untouched for longer than idle.
func (a *App) SweepIdle(idle time.Duration) (carts, limiters int) {
	return a.Carts.Sweep(idle), a.limiter.Sweep(idle)
}

// RunJanitor calls SweepIdle every interval until ctx is done.
func (a *App) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			carts, limiters := a.SweepIdle(idle)
			if carts > 0 || limiters > 0 {
				obs.Logger.Infow("idle_sessions_swept", "carts", carts, "limiters", limiters, "live_carts", a.Carts.Len())
			}
		}
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if a.closing.Load() {
		status = "shutting_down"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"carts":      a.Carts.Len(),
		"uptime_sec": time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Storefront API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
