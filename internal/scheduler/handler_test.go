package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockReleaser struct {
	mock.Mock
}

func (m *MockReleaser) ReleaseSeat(ctx context.Context, seatID uuid.UUID, version int64) error {
	args := m.Called(ctx, seatID, version)
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

func (m *MockCache) InvalidateSeatMap(ctx context.Context) {
	m.Called(ctx)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) SeatReleased(ctx context.Context, bookingID, seatID uuid.UUID, reason string) {
	m.Called(ctx, bookingID, seatID, reason)
}

func expiryTask(t *testing.T, payload SeatExpirePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	return asynq.NewTask(TypeSeatExpire, data)
}

func TestHandleSeatExpire_ReleasesSeat(t *testing.T) {
	store := new(MockReleaser)
	notifier := new(MockNotifier)
	cache := new(MockCache)
	audit := new(MockAuditor)

	bookingID := uuid.New()
	seatID := uuid.New()

	store.On("ReleaseSeat", mock.Anything, seatID, int64(3)).Return(nil)
	cache.On("InvalidateSeatMap", mock.Anything).Return()
	notifier.On("SeatUpdated", mock.Anything, seatID, domain.SeatAvailable).Return()
	audit.On("SeatReleased", mock.Anything, bookingID, seatID, "reservation expired").Return()

	h := NewExpiryHandler(store, notifier, cache, audit, observability.NewLogger())
	err := h.HandleSeatExpire(context.Background(), expiryTask(t, SeatExpirePayload{BookingID: bookingID, SeatID: seatID, Version: 3}))

	assert.NoError(t, err)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestHandleSeatExpire_StaleVersionIsNoOp(t *testing.T) {
	store := new(MockReleaser)
	notifier := new(MockNotifier)

	seatID := uuid.New()
	store.On("ReleaseSeat", mock.Anything, seatID, int64(3)).
		Return(errors.Wrap(domain.ErrConflict, "seat precondition unmet"))

	h := NewExpiryHandler(store, notifier, new(MockCache), new(MockAuditor), observability.NewLogger())
	err := h.HandleSeatExpire(context.Background(), expiryTask(t, SeatExpirePayload{BookingID: uuid.New(), SeatID: seatID, Version: 3}))

	assert.NoError(t, err)
	notifier.AssertNotCalled(t, "SeatUpdated", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSeatExpire_TransientErrorRedelivers(t *testing.T) {
	store := new(MockReleaser)

	seatID := uuid.New()
	storeErr := errors.Mark(errors.New("connection reset"), domain.ErrTransient)
	store.On("ReleaseSeat", mock.Anything, seatID, int64(1)).Return(storeErr)

	h := NewExpiryHandler(store, new(MockNotifier), new(MockCache), new(MockAuditor), observability.NewLogger())
	err := h.HandleSeatExpire(context.Background(), expiryTask(t, SeatExpirePayload{BookingID: uuid.New(), SeatID: seatID, Version: 1}))

	assert.Error(t, err)
}

func TestHandleSeatExpire_MalformedPayloadDropped(t *testing.T) {
	store := new(MockReleaser)

	h := NewExpiryHandler(store, new(MockNotifier), new(MockCache), new(MockAuditor), observability.NewLogger())
	err := h.HandleSeatExpire(context.Background(), asynq.NewTask(TypeSeatExpire, []byte("not json")))

	assert.NoError(t, err)
	store.AssertNotCalled(t, "ReleaseSeat", mock.Anything, mock.Anything, mock.Anything)
}

func TestExpiryTaskID_Stable(t *testing.T) {
	bookingID := uuid.MustParse("0b6c8f64-41a6-4b8e-9f2e-0a1b2c3d4e5f")
	seatID := uuid.MustParse("7e9d3a10-5c2b-4f6d-8e1a-9b8c7d6e5f4a")

	assert.Equal(t,
		"seat-expire:0b6c8f64-41a6-4b8e-9f2e-0a1b2c3d4e5f:7e9d3a10-5c2b-4f6d-8e1a-9b8c7d6e5f4a",
		ExpiryTaskID(bookingID, seatID))
}
