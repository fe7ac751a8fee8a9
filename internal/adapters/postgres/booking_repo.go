package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/seatly/seatly/internal/domain"
)

// CreateBooking locks every seat and creates the owning booking in one
// transaction. seatIDs must already be in deterministic order; locks are
// acquired in exactly that order. Any unavailable or missing seat aborts the
// whole transaction, so the call reserves all requested seats or none.
func (r *Repository) CreateBooking(ctx context.Context, userID uuid.UUID, seatIDs []uuid.UUID) (*domain.Booking, []domain.SeatLock, error) {
	booking := &domain.Booking{
		ID:     uuid.New(),
		UserID: userID,
		Status: domain.BookingPendingPayment,
	}
	var locks []domain.SeatLock

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		locks = locks[:0]
		booking.Seats = booking.Seats[:0]
		booking.Amount = 0

		for _, seatID := range seatIDs {
			seat, err := r.seatForUpdate(ctx, tx, seatID)
			if errors.Is(err, domain.ErrNotFound) {
				return errors.Wrapf(domain.ErrNotFound, "seat %s", seatID)
			}
			if err != nil {
				return err
			}
			if seat.Status != domain.SeatAvailable {
				return errors.Wrapf(domain.ErrConflict, "seat %s unavailable", seat.SeatNumber)
			}

			if err := r.compareAndSwapSeat(ctx, tx, seatID, domain.SeatAvailable, seat.Version, domain.SeatLocked); err != nil {
				return err
			}

			booking.Amount += seat.Price
			booking.Seats = append(booking.Seats, domain.BookingSeat{
				BookingID: booking.ID,
				SeatID:    seat.ID,
				Price:     seat.Price,
			})
			locks = append(locks, domain.SeatLock{SeatID: seat.ID, Version: seat.Version + 1})
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO bookings (id, user_id, amount, status)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, booking.ID, booking.UserID, booking.Amount, booking.Status).Scan(&booking.CreatedAt); err != nil {
			return err
		}

		for _, bs := range booking.Seats {
			if _, err := tx.Exec(ctx, `
				INSERT INTO booking_seats (booking_id, seat_id, price)
				VALUES ($1, $2, $3)
			`, bs.BookingID, bs.SeatID, bs.Price); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return booking, locks, nil
}

const bookingColumns = `id, user_id, amount, status, COALESCE(payment_provider, ''), COALESCE(provider_session_id, ''), COALESCE(provider_transaction_id, ''), expires_at, created_at`

func (r *Repository) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE id = $1
	`, bookingID)
	return scanBooking(row)
}

func (r *Repository) BookingByProviderSession(ctx context.Context, sessionID string) (*domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE provider_session_id = $1
	`, sessionID)
	return scanBooking(row)
}

func (r *Repository) BookingSeats(ctx context.Context, bookingID uuid.UUID) ([]domain.BookingSeat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT booking_id, seat_id, price
		FROM booking_seats WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.BookingSeat
	for rows.Next() {
		var bs domain.BookingSeat
		if err := rows.Scan(&bs.BookingID, &bs.SeatID, &bs.Price); err != nil {
			return nil, err
		}
		seats = append(seats, bs)
	}
	return seats, rows.Err()
}

// SetProviderSession records the payment session returned by the provider
// adapter. Only a booking still awaiting payment may be updated.
func (r *Repository) SetProviderSession(ctx context.Context, bookingID uuid.UUID, provider domain.PaymentProvider, sessionID, transactionID string, expiresAt *time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET payment_provider = $2, provider_session_id = $3, provider_transaction_id = NULLIF($4, ''), expires_at = COALESCE($5, expires_at)
		WHERE id = $1 AND status = $6
	`, bookingID, provider, sessionID, transactionID, expiresAt, domain.BookingPendingPayment)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrInvalidState, "booking %s is not awaiting payment", bookingID)
	}
	return nil
}

// SettlePaid moves a pending booking to PAID and books every associated seat
// in one transaction. The booking update is conditional on PENDING_PAYMENT,
// so a duplicate settlement observes domain.ErrInvalidState and changes
// nothing. The seat writes are deliberately unconditional by id: once the
// provider confirms payment, settlement wins over any racing seat state.
func (r *Repository) SettlePaid(ctx context.Context, bookingID uuid.UUID, provider domain.PaymentProvider, transactionID string) ([]domain.SeatChange, error) {
	var changes []domain.SeatChange
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		changes = changes[:0]

		result, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = $2, payment_provider = $3, provider_transaction_id = COALESCE(NULLIF($4, ''), provider_transaction_id)
			WHERE id = $1 AND status = $5
		`, bookingID, domain.BookingPaid, provider, transactionID, domain.BookingPendingPayment)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return errors.Wrapf(domain.ErrInvalidState, "booking %s already finalized", bookingID)
		}

		rows, err := tx.Query(ctx, `
			UPDATE seats
			SET status = $2, version = version + 1, updated_at = now()
			WHERE id IN (SELECT seat_id FROM booking_seats WHERE booking_id = $1)
			RETURNING id
		`, bookingID, domain.SeatBooked)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var seatID uuid.UUID
			if err := rows.Scan(&seatID); err != nil {
				return err
			}
			changes = append(changes, domain.SeatChange{SeatID: seatID, Status: domain.SeatBooked})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// FinalizeUnpaid moves a pending booking to FAILED or EXPIRED and releases
// its seats. Only seats still LOCKED are touched; a seat already released by
// its expiry job stays as it is.
func (r *Repository) FinalizeUnpaid(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus) ([]domain.SeatChange, error) {
	if status != domain.BookingFailed && status != domain.BookingExpired {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "status %s is not an unpaid terminal state", status)
	}

	var changes []domain.SeatChange
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		changes = changes[:0]

		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = $2
			WHERE id = $1 AND status = $3
		`, bookingID, status, domain.BookingPendingPayment)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return errors.Wrapf(domain.ErrInvalidState, "booking %s already finalized", bookingID)
		}

		rows, err := tx.Query(ctx, `
			UPDATE seats
			SET status = $2, version = version + 1, updated_at = now()
			WHERE status = $3 AND id IN (SELECT seat_id FROM booking_seats WHERE booking_id = $1)
			RETURNING id
		`, bookingID, domain.SeatAvailable, domain.SeatLocked)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var seatID uuid.UUID
			if err := rows.Scan(&seatID); err != nil {
				return err
			}
			changes = append(changes, domain.SeatChange{SeatID: seatID, Status: domain.SeatAvailable})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// OrphanedLocks finds seats LOCKED for longer than maxAge with no pending
// booking left to resolve them, for the operational sweep.
func (r *Repository) OrphanedLocks(ctx context.Context, maxAge time.Duration) ([]domain.SeatLock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.version
		FROM seats s
		WHERE s.status = $1
		  AND s.updated_at < now() - make_interval(secs => $2)
		  AND s.deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM booking_seats bs
			JOIN bookings b ON b.id = bs.booking_id
			WHERE bs.seat_id = s.id AND b.status = $3
		  )
	`, domain.SeatLocked, maxAge.Seconds(), domain.BookingPendingPayment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []domain.SeatLock
	for rows.Next() {
		var lock domain.SeatLock
		if err := rows.Scan(&lock.SeatID, &lock.Version); err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.Amount,
		&b.Status,
		&b.PaymentProvider,
		&b.ProviderSessionID,
		&b.ProviderTransactionID,
		&b.ExpiresAt,
		&b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
