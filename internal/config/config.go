package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	RedisAddr   string
	RabbitURL   string
	MongoURI    string

	ReservationTTL time.Duration
	SweepInterval  time.Duration
	SeatCacheTTL   time.Duration

	ClientURL string

	StripeSecretKey string

	MomoPartnerCode string
	MomoAccessKey   string
	MomoSecretKey   string
	MomoEndpoint    string
	MomoIPNURL      string
	MomoRedirectURL string

	OTLPEndpoint string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   envOr("REDIS_ADDR", "localhost:6379"),
		RabbitURL:   os.Getenv("RABBIT_URL"),
		MongoURI:    os.Getenv("MONGO_URI"),

		ReservationTTL: durationOr("RESERVATION_TTL", 10*time.Minute),
		SweepInterval:  durationOr("SWEEP_INTERVAL", time.Minute),
		SeatCacheTTL:   durationOr("SEAT_CACHE_TTL", 30*time.Second),

		ClientURL: os.Getenv("CLIENT_URL"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		MomoPartnerCode: os.Getenv("MOMO_PARTNER_CODE"),
		MomoAccessKey:   os.Getenv("MOMO_ACCESS_KEY"),
		MomoSecretKey:   os.Getenv("MOMO_SECRET_KEY"),
		MomoEndpoint:    envOr("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
		MomoIPNURL:      os.Getenv("MOMO_IPN_URL"),
		MomoRedirectURL: os.Getenv("MOMO_REDIRECT_URL"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
