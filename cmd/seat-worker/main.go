package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/seatly/seatly/internal/adapters/mongo"
	"github.com/seatly/seatly/internal/adapters/postgres"
	"github.com/seatly/seatly/internal/adapters/rabbit"
	redisadapter "github.com/seatly/seatly/internal/adapters/redis"
	"github.com/seatly/seatly/internal/config"
	"github.com/seatly/seatly/internal/observability"
	"github.com/seatly/seatly/internal/scheduler"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// seat-worker consumes delayed seat expiry jobs and releases locks whose
// booking never got paid.
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("seatly"), logger)

	handler := scheduler.NewExpiryHandler(store, notifier, cache, audit, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{scheduler.QueueSeats: 10},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(scheduler.TypeSeatExpire, handler.HandleSeatExpire)

	logger.Info("seat worker starting")
	if err := srv.Run(mux); err != nil {
		log.Fatalf("seat worker stopped: %v", err)
	}
}
