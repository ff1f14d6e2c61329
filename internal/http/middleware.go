package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

const (
	headerUserID    = "X-User-Id"
	headerSessionID = "X-Session-Id"
)

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	st int
	n  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.st = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.st = http.StatusSwitchingProtocols
	return h.Hijack()
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

// WithLogging logs each request and records it in the HTTP metrics under its
// route pattern.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, st: http.StatusOK}
		next.ServeHTTP(sr, r)
		lat := time.Since(start)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		obs.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(sr.st)).Inc()
		obs.HTTPDuration.WithLabelValues(r.Method, route).Observe(lat.Seconds())
		obs.Logger.Infow("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", sr.st,
			"bytes", sr.n,
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// sessionKey identifies the cart owner: the session header when present,
// otherwise the user id.
func sessionKey(r *http.Request) string {
	if s := r.Header.Get(headerSessionID); s != "" {
		return s
	}
	return r.Header.Get(headerUserID)
}

// RateLimiter keeps one token bucket per session. Buckets idle longer than
// the sweep window are dropped by Sweep.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiters: make(map[string]*bucket), rate: rate.Limit(perSecond), burst: burst, now: time.Now}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.limiters[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = b
	}
	b.seen = rl.now()
	return b.lim
}

// Sweep drops buckets unused for longer than idle and returns how many it
// removed.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	cutoff := rl.now().Add(-idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, b := range rl.limiters {
		if b.seen.Before(cutoff) {
			delete(rl.limiters, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := sessionKey(r)
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.limiter(key).Allow() {
			obs.Logger.Warnw("rate_limited", "key", key, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
			WriteJSONError(w, http.StatusTooManyRequests, "rate_limited", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
