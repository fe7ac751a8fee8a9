package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

const seatMapKey = "seats:all"

// Cache holds the seat-map snapshot. A miss or a redis failure simply falls
// through to the database; invalidation happens on every seat mutation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger observability.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger observability.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) SeatMap(ctx context.Context) ([]domain.Seat, bool) {
	val, err := c.client.Get(ctx, seatMapKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("seat map cache read failed")
		return nil, false
	}
	var seats []domain.Seat
	if err := json.Unmarshal(val, &seats); err != nil {
		return nil, false
	}
	return seats, true
}

func (c *Cache) StoreSeatMap(ctx context.Context, seats []domain.Seat) {
	data, err := json.Marshal(seats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, seatMapKey, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("seat map cache write failed")
	}
}

func (c *Cache) InvalidateSeatMap(ctx context.Context) {
	if err := c.client.Del(ctx, seatMapKey).Err(); err != nil {
		c.logger.WithError(err).Warn("seat map cache invalidation failed")
	}
}
