package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

const (
	enqueueAttempts = 3
	baseBackoff     = 200 * time.Millisecond
)

// Scheduler enqueues and cancels delayed seat expiry jobs. Delivery is
// at-least-once; the handler is idempotent, so a cancellation that loses the
// race with the worker is harmless.
type Scheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	logger    observability.Logger
}

func New(redisOpt asynq.RedisClientOpt, logger observability.Logger) *Scheduler {
	return &Scheduler{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		logger:    logger,
	}
}

func (s *Scheduler) Close() error {
	if err := s.client.Close(); err != nil {
		return err
	}
	return s.inspector.Close()
}

// ScheduleSeatExpiry enqueues the release job for one locked seat. The task
// id is derived from (bookingID, seatID), so re-scheduling the same pair is
// a no-op. Redis errors are retried with bounded backoff and surface as
// domain.ErrTransient once attempts run out.
func (s *Scheduler) ScheduleSeatExpiry(ctx context.Context, bookingID, seatID uuid.UUID, version int64, delay time.Duration) error {
	payload, err := json.Marshal(SeatExpirePayload{BookingID: bookingID, SeatID: seatID, Version: version})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeSeatExpire, payload)
	opts := []asynq.Option{
		asynq.TaskID(ExpiryTaskID(bookingID, seatID)),
		asynq.ProcessIn(delay),
		asynq.Queue(QueueSeats),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}

	var lastErr error
	for attempt := 0; attempt < enqueueAttempts; attempt++ {
		_, err := s.client.EnqueueContext(ctx, task, opts...)
		if err == nil {
			observability.ExpiryJobsScheduled.Inc()
			return nil
		}
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// Already scheduled for this (booking, seat) pair.
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseBackoff << attempt):
		}
	}
	observability.ExpiryScheduleFailures.Inc()
	return errors.Mark(lastErr, domain.ErrTransient)
}

// CancelSeatExpiry removes a pending expiry job. A job that already fired or
// never existed is a no-op; the handler's compare-and-swap covers that race.
func (s *Scheduler) CancelSeatExpiry(ctx context.Context, bookingID, seatID uuid.UUID) error {
	err := s.inspector.DeleteTask(QueueSeats, ExpiryTaskID(bookingID, seatID))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return errors.Mark(err, domain.ErrTransient)
}
