package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatLocked    SeatStatus = "LOCKED"
	SeatBooked    SeatStatus = "BOOKED"
)

type SeatType string

const (
	SeatTypeStandard SeatType = "STANDARD"
	SeatTypeVIP      SeatType = "VIP"
	SeatTypeCouple   SeatType = "COUPLE"
)

// Seat is a bookable unit. Status moves only AVAILABLE->LOCKED->{BOOKED, AVAILABLE};
// every successful mutation bumps Version by exactly one, so a stale-version
// compare-and-swap always fails without side effects.
type Seat struct {
	ID         uuid.UUID
	SeatNumber string
	RowLabel   string
	ColNumber  int
	Type       SeatType
	Price      float64
	Status     SeatStatus
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

func (s *Seat) Available() bool {
	return s.Status == SeatAvailable && s.DeletedAt == nil
}

// SeatLock captures a seat's version right after it was locked for a booking.
// The expiry job carries it so the release compare-and-swap only fires if
// nothing else touched the seat in the meantime.
type SeatLock struct {
	SeatID  uuid.UUID
	Version int64
}

// SeatChange reports a seat whose status was mutated, for notification fan-out.
type SeatChange struct {
	SeatID uuid.UUID
	Status SeatStatus
}
