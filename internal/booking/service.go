package booking

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

// Store is the transactional booking/seat store. CreateBooking must be
// all-or-nothing: it locks every seat in the given order and creates the
// owning booking, or leaves no trace.
type Store interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, []domain.SeatLock, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingSeat, error)
	ListSeats(ctx context.Context) ([]domain.Seat, error)
}

type ExpiryScheduler interface {
	ScheduleSeatExpiry(ctx context.Context, bookingID, seatID uuid.UUID, version int64, delay time.Duration) error
}

type Notifier interface {
	SeatUpdated(ctx context.Context, seatID uuid.UUID, status domain.SeatStatus)
}

type SeatMapCache interface {
	SeatMap(ctx context.Context) ([]domain.Seat, bool)
	StoreSeatMap(ctx context.Context, seats []domain.Seat)
	InvalidateSeatMap(ctx context.Context)
}

type Auditor interface {
	BookingCreated(ctx context.Context, booking *domain.Booking)
}

type Service struct {
	store     Store
	scheduler ExpiryScheduler
	notifier  Notifier
	cache     SeatMapCache
	audit     Auditor
	ttl       time.Duration
	logger    observability.Logger
}

func NewService(store Store, scheduler ExpiryScheduler, notifier Notifier, cache SeatMapCache, audit Auditor, ttl time.Duration, logger observability.Logger) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		notifier:  notifier,
		cache:     cache,
		audit:     audit,
		ttl:       ttl,
		logger:    logger,
	}
}

// Create reserves every requested seat for the user and opens a
// PENDING_PAYMENT booking. Seat ids are deduplicated and sorted into a fixed
// order before any lock is taken, so two concurrent bookings over
// overlapping seat sets cannot deadlock against each other.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, error) {
	if len(seatIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no seats selected")
	}

	sorted := normalizeSeatIDs(seatIDs)

	booking, locks, err := s.store.CreateBooking(ctx, userID, sorted)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			observability.BookingConflicts.Inc()
		}
		return nil, err
	}

	observability.BookingsCreated.Inc()

	// The booking is committed; expiry scheduling failures must not undo it.
	// A lost job leaves an orphaned lock for the sweep to reclaim.
	for _, lock := range locks {
		if err := s.scheduler.ScheduleSeatExpiry(ctx, booking.ID, lock.SeatID, lock.Version, s.ttl); err != nil {
			s.logger.WithError(err).
				WithField("booking_id", booking.ID).
				WithField("seat_id", lock.SeatID).
				Error("expiry job scheduling failed, seat will be reclaimed by sweep")
		}
	}

	s.cache.InvalidateSeatMap(ctx)
	for _, lock := range locks {
		s.notifier.SeatUpdated(ctx, lock.SeatID, domain.SeatLocked)
	}
	s.audit.BookingCreated(ctx, booking)

	return booking, nil
}

func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	booking.Seats, err = s.store.BookingSeats(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Seats serves the seat map, preferring the cache snapshot.
func (s *Service) Seats(ctx context.Context) ([]domain.Seat, error) {
	if seats, ok := s.cache.SeatMap(ctx); ok {
		return seats, nil
	}
	seats, err := s.store.ListSeats(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.StoreSeatMap(ctx, seats)
	return seats, nil
}

func normalizeSeatIDs(seatIDs []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	sorted := make([]uuid.UUID, 0, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}
