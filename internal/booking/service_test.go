package booking

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateBooking(ctx context.Context, userID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, []domain.SeatLock, error) {
	args := m.Called(ctx, userID, seatIDs)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.Get(1).([]domain.SeatLock), args.Error(2)
}

func (m *MockStore) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockStore) BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingSeat, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BookingSeat), args.Error(1)
}

func (m *MockStore) ListSeats(ctx context.Context) ([]domain.Seat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ScheduleSeatExpiry(ctx context.Context, bookingID, seatID uuid.UUID, version int64, delay time.Duration) error {
	args := m.Called(ctx, bookingID, seatID, version, delay)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SeatUpdated(ctx context.Context, seatID uuid.UUID, status domain.SeatStatus) {
	m.Called(ctx, seatID, status)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) SeatMap(ctx context.Context) ([]domain.Seat, bool) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]domain.Seat), args.Bool(1)
}

func (m *MockCache) StoreSeatMap(ctx context.Context, seats []domain.Seat) {
	m.Called(ctx, seats)
}

func (m *MockCache) InvalidateSeatMap(ctx context.Context) {
	m.Called(ctx)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) BookingCreated(ctx context.Context, booking *domain.Booking) {
	m.Called(ctx, booking)
}

func newTestService(store *MockStore, sched *MockScheduler, notifier *MockNotifier, cache *MockCache, audit *MockAuditor) *Service {
	return NewService(store, sched, notifier, cache, audit, 10*time.Minute, observability.NewLogger())
}

func TestCreate_Success(t *testing.T) {
	store := new(MockStore)
	sched := new(MockScheduler)
	notifier := new(MockNotifier)
	cache := new(MockCache)
	audit := new(MockAuditor)

	userID := uuid.New()
	seatA := uuid.New()
	seatB := uuid.New()
	bookingID := uuid.New()

	want := &domain.Booking{
		ID:     bookingID,
		UserID: userID,
		Amount: 250000,
		Status: domain.BookingPendingPayment,
		Seats: []domain.BookingSeat{
			{BookingID: bookingID, SeatID: seatA, Price: 100000},
			{BookingID: bookingID, SeatID: seatB, Price: 150000},
		},
	}
	locks := []domain.SeatLock{
		{SeatID: seatA, Version: 4},
		{SeatID: seatB, Version: 1},
	}

	store.On("CreateBooking", mock.Anything, userID, mock.Anything).Return(want, locks, nil)
	sched.On("ScheduleSeatExpiry", mock.Anything, bookingID, seatA, int64(4), 10*time.Minute).Return(nil)
	sched.On("ScheduleSeatExpiry", mock.Anything, bookingID, seatB, int64(1), 10*time.Minute).Return(nil)
	cache.On("InvalidateSeatMap", mock.Anything).Return()
	notifier.On("SeatUpdated", mock.Anything, seatA, domain.SeatLocked).Return()
	notifier.On("SeatUpdated", mock.Anything, seatB, domain.SeatLocked).Return()
	audit.On("BookingCreated", mock.Anything, want).Return()

	svc := newTestService(store, sched, notifier, cache, audit)
	got, err := svc.Create(context.Background(), userID, []uuid.UUID{seatA, seatB})

	assert.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 250000.0, got.Amount)
	store.AssertExpectations(t)
	sched.AssertExpectations(t)
	notifier.AssertExpectations(t)
	cache.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestCreate_DeduplicatesAndSortsSeatIDs(t *testing.T) {
	store := new(MockStore)
	sched := new(MockScheduler)
	notifier := new(MockNotifier)
	cache := new(MockCache)
	audit := new(MockAuditor)

	userID := uuid.New()
	seatA := uuid.New()
	seatB := uuid.New()
	seatC := uuid.New()

	booking := &domain.Booking{ID: uuid.New(), UserID: userID, Status: domain.BookingPendingPayment}

	store.On("CreateBooking", mock.Anything, userID, mock.MatchedBy(func(ids []uuid.UUID) bool {
		if len(ids) != 3 {
			return false
		}
		for i := 1; i < len(ids); i++ {
			if bytes.Compare(ids[i-1][:], ids[i][:]) >= 0 {
				return false
			}
		}
		return true
	})).Return(booking, []domain.SeatLock{}, nil)
	cache.On("InvalidateSeatMap", mock.Anything).Return()
	audit.On("BookingCreated", mock.Anything, booking).Return()

	svc := newTestService(store, sched, notifier, cache, audit)
	_, err := svc.Create(context.Background(), userID, []uuid.UUID{seatC, seatA, seatB, seatA, seatC})

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestCreate_EmptySeats(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(store, new(MockScheduler), new(MockNotifier), new(MockCache), new(MockAuditor))

	_, err := svc.Create(context.Background(), uuid.New(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_SeatConflict(t *testing.T) {
	store := new(MockStore)
	sched := new(MockScheduler)

	userID := uuid.New()
	store.On("CreateBooking", mock.Anything, userID, mock.Anything).
		Return(nil, nil, errors.Wrap(domain.ErrConflict, "seat A5 unavailable"))

	svc := newTestService(store, sched, new(MockNotifier), new(MockCache), new(MockAuditor))
	_, err := svc.Create(context.Background(), userID, []uuid.UUID{uuid.New()})

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "A5")
	sched.AssertNotCalled(t, "ScheduleSeatExpiry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_SchedulingFailureDoesNotFailBooking(t *testing.T) {
	store := new(MockStore)
	sched := new(MockScheduler)
	notifier := new(MockNotifier)
	cache := new(MockCache)
	audit := new(MockAuditor)

	userID := uuid.New()
	seatID := uuid.New()
	booking := &domain.Booking{ID: uuid.New(), UserID: userID, Status: domain.BookingPendingPayment}
	locks := []domain.SeatLock{{SeatID: seatID, Version: 2}}

	store.On("CreateBooking", mock.Anything, userID, mock.Anything).Return(booking, locks, nil)
	sched.On("ScheduleSeatExpiry", mock.Anything, booking.ID, seatID, int64(2), mock.Anything).
		Return(errors.Mark(errors.New("redis down"), domain.ErrTransient))
	cache.On("InvalidateSeatMap", mock.Anything).Return()
	notifier.On("SeatUpdated", mock.Anything, seatID, domain.SeatLocked).Return()
	audit.On("BookingCreated", mock.Anything, booking).Return()

	svc := newTestService(store, sched, notifier, cache, audit)
	got, err := svc.Create(context.Background(), userID, []uuid.UUID{seatID})

	assert.NoError(t, err)
	assert.Equal(t, booking, got)
}

func TestGet_HydratesSeats(t *testing.T) {
	store := new(MockStore)

	bookingID := uuid.New()
	seatID := uuid.New()
	booking := &domain.Booking{ID: bookingID, Status: domain.BookingPaid}
	seats := []domain.BookingSeat{{BookingID: bookingID, SeatID: seatID, Price: 100000}}

	store.On("GetBooking", mock.Anything, bookingID).Return(booking, nil)
	store.On("BookingSeats", mock.Anything, bookingID).Return(seats, nil)

	svc := newTestService(store, new(MockScheduler), new(MockNotifier), new(MockCache), new(MockAuditor))
	got, err := svc.Get(context.Background(), bookingID)

	assert.NoError(t, err)
	assert.Equal(t, seats, got.Seats)
}

func TestSeats_CacheHit(t *testing.T) {
	store := new(MockStore)
	cache := new(MockCache)

	cached := []domain.Seat{{ID: uuid.New(), SeatNumber: "A1", Status: domain.SeatAvailable}}
	cache.On("SeatMap", mock.Anything).Return(cached, true)

	svc := newTestService(store, new(MockScheduler), new(MockNotifier), cache, new(MockAuditor))
	seats, err := svc.Seats(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, cached, seats)
	store.AssertNotCalled(t, "ListSeats", mock.Anything)
}

func TestSeats_CacheMissFillsCache(t *testing.T) {
	store := new(MockStore)
	cache := new(MockCache)

	fromDB := []domain.Seat{{ID: uuid.New(), SeatNumber: "B2", Status: domain.SeatLocked}}
	cache.On("SeatMap", mock.Anything).Return(nil, false)
	store.On("ListSeats", mock.Anything).Return(fromDB, nil)
	cache.On("StoreSeatMap", mock.Anything, fromDB).Return()

	svc := newTestService(store, new(MockScheduler), new(MockNotifier), cache, new(MockAuditor))
	seats, err := svc.Seats(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, fromDB, seats)
	cache.AssertExpectations(t)
}
