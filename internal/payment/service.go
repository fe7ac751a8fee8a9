package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

type BookingStore interface {
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	SetProviderSession(ctx context.Context, bookingID uuid.UUID, provider domain.PaymentProvider, sessionID, transactionID string, expiresAt *time.Time) error
}

// Service opens checkout links for pending bookings and records the provider
// session on the booking so webhook events can be correlated later.
type Service struct {
	store    BookingStore
	registry *Registry
	ttl      time.Duration
	logger   observability.Logger
}

func NewService(store BookingStore, registry *Registry, ttl time.Duration, logger observability.Logger) *Service {
	return &Service{store: store, registry: registry, ttl: ttl, logger: logger}
}

// CreateLink opens a checkout session for the booking. Only the booking's
// owner may pay for it, and only while it is still PENDING_PAYMENT.
func (s *Service) CreateLink(ctx context.Context, userID, bookingID uuid.UUID, provider domain.PaymentProvider) (*LinkResult, error) {
	adapter, err := s.registry.Adapter(provider)
	if err != nil {
		return nil, err
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, errors.Wrap(domain.ErrNotFound, "booking")
	}
	if booking.Status != domain.BookingPendingPayment {
		return nil, errors.Wrapf(domain.ErrInvalidState, "booking is %s", booking.Status)
	}

	link, err := adapter.CreatePaymentLink(ctx, CreateLinkParams{
		BookingID: bookingID,
		Amount:    booking.Amount,
		OrderInfo: fmt.Sprintf("Seat booking %s", bookingID),
	})
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.ttl)
	if err := s.store.SetProviderSession(ctx, bookingID, provider, link.SessionID, "", &expiresAt); err != nil {
		// The booking flipped to a terminal state between the read and the
		// write; the session is abandoned and will expire on the provider side.
		s.logger.WithError(err).WithField("booking_id", bookingID).
			Warn("checkout session created for a booking that is no longer pending")
		return nil, err
	}

	observability.PaymentLinksCreated.WithLabelValues(string(provider)).Inc()
	return link, nil
}
