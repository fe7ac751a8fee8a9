package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger keeps an append-only trail of booking lifecycle events.
// Writes are best-effort; a failed insert is logged and ignored.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type auditEntry struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	BookingID uuid.UUID `bson:"booking_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) log(ctx context.Context, action string, bookingID uuid.UUID, data map[string]interface{}) {
	entry := auditEntry{
		ID:        uuid.New(),
		Action:    action,
		BookingID: bookingID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithError(err).WithField("action", action).Warn("audit insert failed")
	}
}

func (a *AuditLogger) BookingCreated(ctx context.Context, booking *domain.Booking) {
	seatIDs := make([]string, 0, len(booking.Seats))
	for _, bs := range booking.Seats {
		seatIDs = append(seatIDs, bs.SeatID.String())
	}
	a.log(ctx, "booking.created", booking.ID, map[string]interface{}{
		"user_id": booking.UserID.String(),
		"amount":  booking.Amount,
		"seats":   seatIDs,
	})
}

func (a *AuditLogger) BookingFinalized(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus, provider domain.PaymentProvider) {
	a.log(ctx, "booking.finalized", bookingID, map[string]interface{}{
		"status":   string(status),
		"provider": string(provider),
	})
}

func (a *AuditLogger) SeatReleased(ctx context.Context, bookingID, seatID uuid.UUID, reason string) {
	a.log(ctx, "seat.released", bookingID, map[string]interface{}{
		"seat_id": seatID.String(),
		"reason":  reason,
	})
}
