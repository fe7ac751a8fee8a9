package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/seatly/seatly/internal/adapters/mongo"
	"github.com/seatly/seatly/internal/adapters/postgres"
	"github.com/seatly/seatly/internal/adapters/rabbit"
	redisadapter "github.com/seatly/seatly/internal/adapters/redis"
	"github.com/seatly/seatly/internal/booking"
	"github.com/seatly/seatly/internal/config"
	httphandler "github.com/seatly/seatly/internal/http"
	"github.com/seatly/seatly/internal/observability"
	"github.com/seatly/seatly/internal/payment"
	"github.com/seatly/seatly/internal/ratelimit"
	"github.com/seatly/seatly/internal/scheduler"
	"github.com/seatly/seatly/internal/webhook"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	store := postgres.NewRepository(pool, logger)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("seatly"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cache := redisadapter.NewCache(redisClient, cfg.SeatCacheTTL, logger)
	idemp := redisadapter.NewIdempotency(redisClient, time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	notifier, err := rabbit.NewPublisher(rabbitConn, logger)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	jobs := scheduler.New(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger)
	defer jobs.Close()

	bookings := booking.NewService(store, jobs, notifier, cache, audit, cfg.ReservationTTL, logger)
	registry := payment.NewRegistry(
		payment.NewStripeAdapter(cfg.StripeSecretKey, cfg.ClientURL, logger),
		payment.NewMomoAdapter(payment.MomoConfig{
			PartnerCode: cfg.MomoPartnerCode,
			AccessKey:   cfg.MomoAccessKey,
			SecretKey:   cfg.MomoSecretKey,
			Endpoint:    cfg.MomoEndpoint,
			IPNURL:      cfg.MomoIPNURL,
			RedirectURL: cfg.MomoRedirectURL,
		}, logger),
	)
	payments := payment.NewService(store, registry, cfg.ReservationTTL, logger)
	webhooks := webhook.NewService(store, jobs, notifier, cache, audit, cfg.MomoSecretKey, cfg.MomoAccessKey, logger)

	handlers := httphandler.NewHandlers(bookings, payments, webhooks, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
