package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/seatly/seatly/internal/adapters/postgres"
	"github.com/seatly/seatly/internal/adapters/rabbit"
	redisadapter "github.com/seatly/seatly/internal/adapters/redis"
	"github.com/seatly/seatly/internal/config"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

// sweeper is the safety net behind the expiry jobs: it reclaims seat locks
// whose expiry job was lost (scheduling failed, queue wiped) by scanning for
// locks older than the reservation TTL with no pending booking.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	store := postgres.NewRepository(pool, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cache := redisadapter.NewCache(redisClient, cfg.SeatCacheTTL, logger)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	notifier, err := rabbit.NewPublisher(rabbitConn, logger)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	sweeper := &Sweeper{store: store, cache: cache, notifier: notifier, ttl: cfg.ReservationTTL, logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown sweeper")
}

type Sweeper struct {
	store    *postgres.Repository
	cache    *redisadapter.Cache
	notifier *rabbit.Publisher
	ttl      time.Duration
	logger   observability.Logger
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	locks, err := s.store.OrphanedLocks(ctx, s.ttl)
	if err != nil {
		s.logger.WithError(err).Error("orphaned lock scan failed")
		return
	}
	if len(locks) == 0 {
		return
	}

	released := 0
	for _, lock := range locks {
		err := s.store.ReleaseSeat(ctx, lock.SeatID, lock.Version)
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			// Someone else resolved the seat between scan and release.
			continue
		}
		if err != nil {
			s.logger.WithError(err).WithField("seat_id", lock.SeatID).Error("orphaned lock release failed")
			continue
		}
		released++
		observability.SeatsReleased.WithLabelValues("swept").Inc()
		s.notifier.SeatUpdated(ctx, lock.SeatID, domain.SeatAvailable)
	}

	if released > 0 {
		s.cache.InvalidateSeatMap(ctx)
		s.logger.WithField("count", released).Info("orphaned seat locks reclaimed")
	}
}
