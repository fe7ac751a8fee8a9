package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/seatly/seatly/internal/domain"
)

const seatColumns = `id, seat_number, row_label, col_number, type, price, status, version, created_at, updated_at, deleted_at`

func (r *Repository) GetSeat(ctx context.Context, seatID uuid.UUID) (*domain.Seat, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+seatColumns+`
		FROM seats WHERE id = $1 AND deleted_at IS NULL
	`, seatID)
	return scanSeat(row)
}

func (r *Repository) ListSeats(ctx context.Context) ([]domain.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+seatColumns+`
		FROM seats WHERE deleted_at IS NULL
		ORDER BY row_label, col_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *seat)
	}
	return seats, rows.Err()
}

// seatForUpdate fetches a seat under a row lock so no concurrent transaction
// can mutate it until the caller's transaction ends.
func (r *Repository) seatForUpdate(ctx context.Context, tx pgx.Tx, seatID uuid.UUID) (*domain.Seat, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+seatColumns+`
		FROM seats WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, seatID)
	return scanSeat(row)
}

// CompareAndSwapSeat applies newStatus and bumps the version iff the seat
// currently matches (expectStatus, expectVersion). Pass expectVersion < 0 to
// match on status alone. A precondition miss returns domain.ErrConflict with
// no change; an unknown seat returns domain.ErrNotFound.
func (r *Repository) CompareAndSwapSeat(ctx context.Context, seatID uuid.UUID, expectStatus domain.SeatStatus, expectVersion int64, newStatus domain.SeatStatus) error {
	return r.compareAndSwapSeat(ctx, r.pool, seatID, expectStatus, expectVersion, newStatus)
}

// querier covers the pool and pgx.Tx, so the compare-and-swap can run either
// standalone or inside a caller's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) compareAndSwapSeat(ctx context.Context, q querier, seatID uuid.UUID, expectStatus domain.SeatStatus, expectVersion int64, newStatus domain.SeatStatus) error {
	result, err := q.Exec(ctx, `
		UPDATE seats
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND status = $3 AND ($4::bigint < 0 OR version = $4) AND deleted_at IS NULL
	`, newStatus, seatID, expectStatus, expectVersion)
	if err != nil {
		return mapPgError(err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM seats WHERE id = $1 AND deleted_at IS NULL)`, seatID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(domain.ErrNotFound, "seat %s", seatID)
		}
		return errors.Wrapf(domain.ErrConflict, "seat %s precondition unmet", seatID)
	}
	return nil
}

// ReleaseSeat is the expiry-path compare-and-swap: LOCKED at the captured
// version back to AVAILABLE. Conflict means the seat was already resolved or
// released by someone else.
func (r *Repository) ReleaseSeat(ctx context.Context, seatID uuid.UUID, version int64) error {
	return r.CompareAndSwapSeat(ctx, seatID, domain.SeatLocked, version, domain.SeatAvailable)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (*domain.Seat, error) {
	var seat domain.Seat
	err := row.Scan(
		&seat.ID,
		&seat.SeatNumber,
		&seat.RowLabel,
		&seat.ColNumber,
		&seat.Type,
		&seat.Price,
		&seat.Status,
		&seat.Version,
		&seat.CreatedAt,
		&seat.UpdatedAt,
		&seat.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}
