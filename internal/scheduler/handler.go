package scheduler

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

// SeatReleaser is the compare-and-swap entry point of the seat store:
// LOCKED at the captured version back to AVAILABLE.
type SeatReleaser interface {
	ReleaseSeat(ctx context.Context, seatID uuid.UUID, version int64) error
}

type Notifier interface {
	SeatUpdated(ctx context.Context, seatID uuid.UUID, status domain.SeatStatus)
}

type SeatMapCache interface {
	InvalidateSeatMap(ctx context.Context)
}

type Auditor interface {
	SeatReleased(ctx context.Context, bookingID, seatID uuid.UUID, reason string)
}

// ExpiryHandler processes fired seat expiry jobs. Delivery is at-least-once,
// so the handler must be idempotent: a precondition miss means the seat was
// already resolved or released, and counts as success.
type ExpiryHandler struct {
	store    SeatReleaser
	notifier Notifier
	cache    SeatMapCache
	audit    Auditor
	logger   observability.Logger
}

func NewExpiryHandler(store SeatReleaser, notifier Notifier, cache SeatMapCache, audit Auditor, logger observability.Logger) *ExpiryHandler {
	return &ExpiryHandler{store: store, notifier: notifier, cache: cache, audit: audit, logger: logger}
}

func (h *ExpiryHandler) HandleSeatExpire(ctx context.Context, t *asynq.Task) error {
	var payload SeatExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Undecodable payloads would fail forever; drop them.
		h.logger.WithError(err).Error("seat expiry payload malformed")
		return nil
	}

	log := h.logger.WithField("booking_id", payload.BookingID).WithField("seat_id", payload.SeatID)

	err := h.store.ReleaseSeat(ctx, payload.SeatID, payload.Version)
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
		log.Debug("seat expiry no-op, seat already resolved")
		return nil
	}
	if err != nil {
		// Transient store failure; let asynq redeliver.
		return err
	}

	observability.SeatsReleased.WithLabelValues("expired").Inc()
	h.cache.InvalidateSeatMap(ctx)
	h.notifier.SeatUpdated(ctx, payload.SeatID, domain.SeatAvailable)
	h.audit.SeatReleased(ctx, payload.BookingID, payload.SeatID, "reservation expired")
	log.Info("seat lock expired and released")
	return nil
}
