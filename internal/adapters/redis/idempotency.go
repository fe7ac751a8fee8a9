package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency stores the first response for a client-supplied key so a
// retried booking request replays it instead of reserving seats twice.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	return &Idempotency{client: client, ttl: ttl}
}

type IdempResponse struct {
	Status int
	Result []byte
}

// pendingMarker occupies the key between Reserve and Set, so a concurrent
// request with the same key cannot execute the operation a second time.
const pendingMarker = "__pending__"

func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if string(val) == pendingMarker {
		return nil, nil
	}
	var resp IdempResponse
	err = json.Unmarshal(val, &resp)
	return &resp, err
}

// Reserve claims the key before the operation runs. A false return means
// another request holds the key, either still in flight or already completed.
func (i *Idempotency) Reserve(ctx context.Context, key string) (bool, error) {
	return i.client.SetNX(ctx, "idemp:"+key, pendingMarker, i.ttl).Result()
}

// Release frees a reserved key after the operation failed, so the client can
// retry with the same key.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.client.Del(ctx, "idemp:"+key).Err()
}

func (i *Idempotency) Set(ctx context.Context, key string, resp IdempResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, "idemp:"+key, data, i.ttl).Err()
}
