package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seatly/seatly/internal/observability"
	"github.com/seatly/seatly/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl))

		r.With(IdempotencyKeyMiddleware).Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Get("/v1/seats", h.ListSeats)
		r.Post("/v1/payments/link", h.CreatePaymentLink)
	})

	// Provider callbacks are never rate limited; dropping one delays
	// reconciliation until the provider retries.
	r.Post("/v1/webhooks/stripe", h.StripeWebhook)
	r.Post("/v1/webhooks/momo", h.MomoWebhook)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
