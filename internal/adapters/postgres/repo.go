package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

const (
	serializationFailureCode = "40001"
	lockNotAvailableCode     = "55P03"
	queryCanceledCode        = "57014"
)

type Repository struct {
	pool   *pgxpool.Pool
	logger observability.Logger
}

func NewRepository(pool *pgxpool.Pool, logger observability.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

// WithTx runs fn inside a transaction with a bounded lock wait. Lock-wait
// timeouts and serialization failures surface as domain.ErrTransient so
// callers can treat them as retryable.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '3s'"); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	// Serialization failures can surface at commit, not just inside fn.
	return mapPgError(tx.Commit(ctx))
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailureCode, lockNotAvailableCode, queryCanceledCode:
			return errors.Mark(err, domain.ErrTransient)
		}
	}
	return err
}
