package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redisadapter "github.com/seatly/seatly/internal/adapters/redis"
	"github.com/seatly/seatly/internal/booking"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
	"github.com/seatly/seatly/internal/payment"
	"github.com/seatly/seatly/internal/webhook"
)

type Handlers struct {
	bookings *booking.Service
	payments *payment.Service
	webhooks *webhook.Service
	idemp    *redisadapter.Idempotency
	logger   observability.Logger
}

func NewHandlers(bookings *booking.Service, payments *payment.Service, webhooks *webhook.Service, idemp *redisadapter.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		bookings: bookings,
		payments: payments,
		webhooks: webhooks,
		idemp:    idemp,
		logger:   logger,
	}
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")

	// Claim the key before doing any work, so a concurrent retry with the
	// same key replays or backs off instead of booking twice.
	reserved, err := h.idemp.Reserve(r.Context(), key)
	if err != nil {
		http.Error(w, "idempotency store unavailable", http.StatusInternalServerError)
		return
	}
	if !reserved {
		existing, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			http.Error(w, "idempotency store unavailable", http.StatusInternalServerError)
			return
		}
		if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.Status)
			w.Write(existing.Result)
			return
		}
		http.Error(w, "request with this Idempotency-Key already in progress", http.StatusConflict)
		return
	}

	var req struct {
		UserID  uuid.UUID   `json:"user_id"`
		SeatIDs []uuid.UUID `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.idemp.Release(r.Context(), key)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil {
		h.idemp.Release(r.Context(), key)
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.Create(r.Context(), req.UserID, req.SeatIDs)
	if err != nil {
		h.idemp.Release(r.Context(), key)
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"booking_id": b.ID,
		"status":     b.Status,
		"amount":     b.Amount,
		"seats":      seatIDsOf(b.Seats),
		"created_at": b.CreatedAt.Format(time.RFC3339),
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, redisadapter.IdempResponse{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"booking_id": b.ID,
		"status":     b.Status,
		"amount":     b.Amount,
		"seats":      seatIDsOf(b.Seats),
		"created_at": b.CreatedAt.Format(time.RFC3339),
	}
	if b.PaymentProvider != "" {
		resp["payment_provider"] = b.PaymentProvider
	}
	if b.ExpiresAt != nil {
		resp["expires_at"] = b.ExpiresAt.Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.bookings.Seats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(seats))
	for _, s := range seats {
		out = append(out, map[string]interface{}{
			"id":          s.ID,
			"seat_number": s.SeatNumber,
			"row":         s.RowLabel,
			"col":         s.ColNumber,
			"type":        s.Type,
			"price":       s.Price,
			"status":      s.Status,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"seats": out})
}

func (h *Handlers) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    uuid.UUID              `json:"user_id"`
		BookingID uuid.UUID              `json:"booking_id"`
		Provider  domain.PaymentProvider `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	link, err := h.payments.CreateLink(r.Context(), req.UserID, req.BookingID, req.Provider)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"url":        link.URL,
		"session_id": link.SessionID,
	})
}

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	var ev webhook.StripeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.webhooks.HandleStripeEvent(r.Context(), ev); err != nil {
		// Non-2xx makes Stripe redeliver; the handlers are idempotent.
		h.logger.WithError(err).WithField("event_id", ev.ID).Error("stripe event processing failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func (h *Handlers) MomoWebhook(w http.ResponseWriter, r *http.Request) {
	var ev webhook.MomoEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ack, err := h.webhooks.HandleMomoEvent(r.Context(), ev)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", ev.OrderID).Error("momo event processing failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	// MoMo expects 200 with a result code even for rejected events.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ack)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidState):
		http.Error(w, "booking already finalized", http.StatusConflict)
	case errors.Is(err, domain.ErrTransient):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func seatIDsOf(seats []domain.BookingSeat) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.SeatID)
	}
	return ids
}
