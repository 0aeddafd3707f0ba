// Package api assembles the HTTP surface of the library desk.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/httpx"
	"libradesk/internal/membership"
)

// Services are the domain services the router exposes.
type Services struct {
	Users membership.Service
	Books catalog.Service
	Loans circulation.Service
}

// Options tune the router.
type Options struct {
	// MutationsPerMinute caps mutating requests across all clients. Zero or
	// less disables the limit.
	MutationsPerMinute int
	Logger             *slog.Logger
}

// NewRouter returns a chi router serving the user, book, loan and stats
// endpoints.
func NewRouter(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mutate := RateLimit(opts.MutationsPerMinute)
	membership.NewHandler(svc.Users).Routes(r, mutate)
	catalog.NewHandler(svc.Books).Routes(r, mutate)
	circulation.NewHandler(svc.Loans).Routes(r, mutate)
	return r
}

// RateLimit returns middleware that admits perMinute requests a minute with
// bursts of the same size and answers 429 beyond that.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "60")
				httpx.WriteJSON(w, http.StatusTooManyRequests, httpx.ErrorBody{
					Error:   "rate_limited",
					Message: "too many changes, try again shortly",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(r.Context(), "http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
