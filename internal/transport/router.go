// Package transport is the REST surface of the checkout engine.
package transport

import (
	"context"
	"net/http"
	"time"

	"gst-checkout/internal/cart"
	"gst-checkout/internal/logger"
	"gst-checkout/internal/metrics"
	"gst-checkout/internal/middleware"
	"gst-checkout/internal/order"
	"gst-checkout/internal/payment"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

type Deps struct {
	Carts    cart.Service
	Orders   order.Service
	Payments payment.Service
	// Webhook serves POST /webhooks/payment.
	Webhook http.Handler

	Metrics   *metrics.Metrics
	Limiter   *middleware.Limiter
	JWTSecret []byte

	// Ready, when set, backs /readyz.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				logger.FromCtx(r.Context()).Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	if d.Webhook != nil {
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			r.Method(http.MethodPost, "/webhooks/payment", d.Webhook)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.JWTSecret))
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}

		NewCartHandler(d.Carts).Register(r)
		NewOrderHandler(d.Orders, d.Payments).Register(r)
		NewTaxHandler().Register(r)
	})

	return r
}
