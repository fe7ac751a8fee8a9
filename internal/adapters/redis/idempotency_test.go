package redis_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	redisadapter "github.com/seatly/seatly/internal/adapters/redis"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startIdempotency(t *testing.T) *redisadapter.Idempotency {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	client := redisclient.NewClient(&redisclient.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })

	return redisadapter.NewIdempotency(client, time.Hour)
}

func TestIdempotency_ReserveBlocksDuplicate(t *testing.T) {
	idemp := startIdempotency(t)
	ctx := context.Background()

	ok, err := idemp.Reserve(ctx, "booking-key-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first reserve to win")
	}

	// A concurrent duplicate must not get to execute.
	ok, err = idemp.Reserve(ctx, "booking-key-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected second reserve to lose")
	}

	// While the first request is in flight there is nothing to replay yet.
	existing, err := idemp.Get(ctx, "booking-key-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if existing != nil {
		t.Fatalf("expected no stored response while pending, got %+v", existing)
	}

	stored := redisadapter.IdempResponse{Status: http.StatusCreated, Result: []byte(`{"booking_id":"b1"}`)}
	if err := idemp.Set(ctx, "booking-key-0123456789", stored); err != nil {
		t.Fatal(err)
	}

	existing, err = idemp.Get(ctx, "booking-key-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if existing == nil || existing.Status != http.StatusCreated || string(existing.Result) != string(stored.Result) {
		t.Fatalf("expected stored response to replay, got %+v", existing)
	}
}

func TestIdempotency_ReleaseAllowsRetry(t *testing.T) {
	idemp := startIdempotency(t)
	ctx := context.Background()

	ok, err := idemp.Reserve(ctx, "failed-key-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected reserve to win")
	}

	// The operation failed; freeing the key lets the client retry.
	if err := idemp.Release(ctx, "failed-key-0123456789"); err != nil {
		t.Fatal(err)
	}

	ok, err = idemp.Reserve(ctx, "failed-key-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected reserve to win again after release")
	}
}
