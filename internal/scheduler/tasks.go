package scheduler

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// TypeSeatExpire is the one-shot delayed task that releases a seat lock
	// if payment does not complete within the reservation TTL.
	TypeSeatExpire = "seat:expire"

	// QueueSeats is the asynq queue carrying seat expiry tasks.
	QueueSeats = "seats"
)

// SeatExpirePayload carries the seat's post-lock version so the expiry
// handler's compare-and-swap only fires if nothing else touched the seat.
type SeatExpirePayload struct {
	BookingID uuid.UUID `json:"booking_id"`
	SeatID    uuid.UUID `json:"seat_id"`
	Version   int64     `json:"version"`
}

// ExpiryTaskID derives the stable job id for a (booking, seat) pair. It is
// what makes scheduling idempotent and cancellation addressable.
func ExpiryTaskID(bookingID, seatID uuid.UUID) string {
	return fmt.Sprintf("seat-expire:%s:%s", bookingID, seatID)
}
