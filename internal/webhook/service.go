package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Store is the transactional settlement surface. SettlePaid and FinalizeUnpaid
// are conditional on the booking still being PENDING_PAYMENT and report
// domain.ErrInvalidState when it is not, which the handlers treat as a
// duplicate delivery.
type Store interface {
	BookingByProviderSession(ctx context.Context, sessionID string) (*domain.Booking, error)
	BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingSeat, error)
	SettlePaid(ctx context.Context, bookingID uuid.UUID, provider domain.PaymentProvider, transactionID string) ([]domain.SeatChange, error)
	FinalizeUnpaid(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) ([]domain.SeatChange, error)
}

type JobCanceler interface {
	CancelSeatExpiry(ctx context.Context, bookingID, seatID uuid.UUID) error
}

type Notifier interface {
	SeatUpdated(ctx context.Context, seatID uuid.UUID, status domain.SeatStatus)
}

type SeatMapCache interface {
	InvalidateSeatMap(ctx context.Context)
}

type Auditor interface {
	BookingFinalized(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus, provider domain.PaymentProvider)
}

// Service reconciles provider webhook events against bookings. Every handler
// is idempotent: duplicates and late deliveries acknowledge without mutating.
type Service struct {
	store      Store
	jobs       JobCanceler
	notifier   Notifier
	cache      SeatMapCache
	audit      Auditor
	momoSecret string
	momoAccess string
	logger     observability.Logger
}

func NewService(store Store, jobs JobCanceler, notifier Notifier, cache SeatMapCache, audit Auditor, momoSecret, momoAccess string, logger observability.Logger) *Service {
	return &Service{
		store:      store,
		jobs:       jobs,
		notifier:   notifier,
		cache:      cache,
		audit:      audit,
		momoSecret: momoSecret,
		momoAccess: momoAccess,
		logger:     logger,
	}
}

// StripeEvent is the subset of a Stripe webhook envelope the service consumes.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

// HandleStripeEvent processes one Stripe event. Unknown event types and
// sessions with no matching booking are acknowledged without effect; an error
// return means the caller should let Stripe redeliver.
func (s *Service) HandleStripeEvent(ctx context.Context, ev StripeEvent) error {
	log := s.logger.WithField("event_id", ev.ID).WithField("event_type", ev.Type)

	switch ev.Type {
	case "checkout.session.completed":
		return s.settle(ctx, "stripe", domain.ProviderStripe, ev.Data.Object.ID, ev.Data.Object.PaymentIntent)
	case "checkout.session.expired":
		return s.finalize(ctx, "stripe", ev.Data.Object.ID, domain.BookingExpired)
	default:
		log.Debug("stripe event ignored")
		observability.WebhookEvents.WithLabelValues("stripe", "ignored").Inc()
		return nil
	}
}

// MomoEvent is the IPN callback body from the MoMo v2 gateway.
type MomoEvent struct {
	PartnerCode  string `json:"partnerCode"`
	AccessKey    string `json:"accessKey"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// MomoAck is the body MoMo expects back, always with HTTP 200.
type MomoAck struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// HandleMomoEvent verifies the IPN signature and settles or fails the booking
// it addresses. The returned error is only for internal failures the gateway
// should retry; protocol-level rejections travel in the ack.
func (s *Service) HandleMomoEvent(ctx context.Context, ev MomoEvent) (MomoAck, error) {
	log := s.logger.WithField("order_id", ev.OrderID).WithField("result_code", ev.ResultCode)

	if ev.Signature == "" {
		log.Warn("momo event missing signature")
		observability.WebhookEvents.WithLabelValues("momo", "rejected").Inc()
		return MomoAck{ResultCode: 1010, Message: "Missing signature"}, nil
	}
	if !s.verifyMomoSignature(ev) {
		log.Warn("momo signature mismatch")
		observability.WebhookEvents.WithLabelValues("momo", "rejected").Inc()
		return MomoAck{ResultCode: 97, Message: "Signature mismatch"}, nil
	}
	if ev.OrderID == "" {
		log.Warn("momo event missing orderId")
		observability.WebhookEvents.WithLabelValues("momo", "rejected").Inc()
		return MomoAck{ResultCode: 2001, Message: "Missing orderId"}, nil
	}

	if ev.ResultCode == 0 {
		if err := s.settle(ctx, "momo", domain.ProviderMomo, ev.OrderID, fmt.Sprintf("%d", ev.TransID)); err != nil {
			return MomoAck{}, err
		}
		return MomoAck{ResultCode: 0, Message: "Success"}, nil
	}

	if err := s.finalize(ctx, "momo", ev.OrderID, domain.BookingFailed); err != nil {
		return MomoAck{}, err
	}
	return MomoAck{ResultCode: 0, Message: "MoMo event processed"}, nil
}

// verifyMomoSignature recomputes the HMAC over the gateway's fixed field
// order and compares in constant time.
func (s *Service) verifyMomoSignature(ev MomoEvent) bool {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		s.momoAccess, ev.Amount, ev.ExtraData, ev.Message, ev.OrderID, ev.OrderInfo,
		ev.OrderType, ev.PartnerCode, ev.PayType, ev.RequestID, ev.ResponseTime,
		ev.ResultCode, ev.TransID,
	)
	mac := hmac.New(sha256.New, []byte(s.momoSecret))
	mac.Write([]byte(raw))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(ev.Signature))
}

func (s *Service) settle(ctx context.Context, providerLabel string, provider domain.PaymentProvider, sessionID, transactionID string) error {
	log := s.logger.WithField("session_id", sessionID).WithField("provider", providerLabel)

	booking, err := s.store.BookingByProviderSession(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("no booking matches provider session")
		observability.WebhookEvents.WithLabelValues(providerLabel, "unmatched").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	changes, err := s.store.SettlePaid(ctx, booking.ID, provider, transactionID)
	if errors.Is(err, domain.ErrInvalidState) {
		log.Debug("booking already finalized, settlement is a no-op")
		observability.WebhookEvents.WithLabelValues(providerLabel, "duplicate").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	s.cancelExpiryJobs(ctx, booking.ID)
	s.cache.InvalidateSeatMap(ctx)
	for _, change := range changes {
		s.notifier.SeatUpdated(ctx, change.SeatID, change.Status)
	}
	s.audit.BookingFinalized(ctx, booking.ID, domain.BookingPaid, provider)
	observability.WebhookEvents.WithLabelValues(providerLabel, "settled").Inc()
	log.WithField("booking_id", booking.ID).Info("booking settled as paid")
	return nil
}

func (s *Service) finalize(ctx context.Context, providerLabel, sessionID string, status domain.BookingStatus) error {
	log := s.logger.WithField("session_id", sessionID).WithField("provider", providerLabel)

	booking, err := s.store.BookingByProviderSession(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("no booking matches provider session")
		observability.WebhookEvents.WithLabelValues(providerLabel, "unmatched").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	changes, err := s.store.FinalizeUnpaid(ctx, booking.ID, status)
	if errors.Is(err, domain.ErrInvalidState) {
		log.Debug("booking already finalized, event is a no-op")
		observability.WebhookEvents.WithLabelValues(providerLabel, "duplicate").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	s.cancelExpiryJobs(ctx, booking.ID)
	s.cache.InvalidateSeatMap(ctx)
	reason := "failed"
	if status == domain.BookingExpired {
		reason = "checkout_expired"
	}
	for _, change := range changes {
		observability.SeatsReleased.WithLabelValues(reason).Inc()
		s.notifier.SeatUpdated(ctx, change.SeatID, change.Status)
	}
	s.audit.BookingFinalized(ctx, booking.ID, status, booking.PaymentProvider)
	observability.WebhookEvents.WithLabelValues(providerLabel, "finalized").Inc()
	log.WithField("booking_id", booking.ID).WithField("status", status).Info("booking finalized unpaid")
	return nil
}

// cancelExpiryJobs removes pending expiry jobs for every seat in the booking.
// Failures are logged, not returned: a job that survives cancellation fires
// into the release compare-and-swap and loses.
func (s *Service) cancelExpiryJobs(ctx context.Context, bookingID uuid.UUID) {
	seats, err := s.store.BookingSeats(ctx, bookingID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).
			Warn("cannot list booking seats for expiry cancellation")
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, seat := range seats {
		seatID := seat.SeatID
		g.Go(func() error {
			return s.jobs.CancelSeatExpiry(ctx, bookingID, seatID)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).
			Warn("expiry job cancellation incomplete")
	}
}
