package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

const (
	exchange       = "seatly.events"
	seatUpdatedKey = "seat.updated"
)

// Publisher is the seat-state-changed notification sink. Emission is
// fire-and-forget: failures are logged, never propagated to the caller.
type Publisher struct {
	ch     *amqp.Channel
	logger observability.Logger
}

func NewPublisher(conn *amqp.Connection, logger observability.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, logger: logger}, nil
}

type seatUpdatedEvent struct {
	SeatID uuid.UUID         `json:"seat_id"`
	Status domain.SeatStatus `json:"status"`
	At     time.Time         `json:"at"`
}

func (p *Publisher) SeatUpdated(ctx context.Context, seatID uuid.UUID, status domain.SeatStatus) {
	body, err := json.Marshal(seatUpdatedEvent{SeatID: seatID, Status: status, At: time.Now().UTC()})
	if err != nil {
		return
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        body,
	}
	if err := p.ch.PublishWithContext(ctx, exchange, seatUpdatedKey, false, false, msg); err != nil {
		p.logger.WithError(err).WithField("seat_id", seatID).Warn("seat update notification dropped")
	}
}
