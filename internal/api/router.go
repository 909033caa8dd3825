package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Games           Games
	Auth            *Authenticator
	Gatherer        prometheus.Gatherer
	LaunchPerSecond float64
	LaunchBurst     int
}

// NewRouter registers the provider callback, the player API behind bearer
// auth, and the ops endpoints.
func NewRouter(d RouterDeps) http.Handler {
	h := NewHandler(d.Games)
	limiter := newUserLimiter(d.LaunchPerSecond, d.LaunchBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/provider/callback", h.CallbackHandler)

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.With(limiter.middleware).Post("/games/launch", h.LaunchHandler)
		r.Post("/games/sessions/{sessionId}/close", h.CloseSessionHandler)

		r.Get("/wallet/balances", h.BalancesHandler)
		r.Post("/wallet/provider/deposit", h.DepositHandler)
		r.Post("/wallet/provider/withdraw", h.WithdrawHandler)
		r.Get("/wallet/provider/transactions", h.LocalTransactionsHandler)

		r.Get("/provider/transactions", h.HistoryHandler)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
