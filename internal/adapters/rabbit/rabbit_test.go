package rabbit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/seatly/seatly/internal/adapters/rabbit"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPublisher_SeatUpdatedRoundTrip(t *testing.T) {
	ctx := context.Background()

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForListeningPort("5672/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	host, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	conn, err := amqp.Dial("amqp://guest:guest@" + host + ":" + port.Port() + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	pub, err := rabbit.NewPublisher(conn, observability.NewLogger())
	if err != nil {
		t.Fatal(err)
	}
	consumer, err := rabbit.NewConsumer(conn, "seat-updates-test")
	if err != nil {
		t.Fatal(err)
	}
	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	seatID := uuid.New()
	pub.SeatUpdated(ctx, seatID, domain.SeatLocked)

	select {
	case msg := <-deliveries:
		var event struct {
			SeatID uuid.UUID `json:"seat_id"`
			Status string    `json:"status"`
		}
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			t.Fatal(err)
		}
		if event.SeatID != seatID || event.Status != string(domain.SeatLocked) {
			t.Errorf("unexpected event %+v", event)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no seat.updated event delivered")
	}
}
