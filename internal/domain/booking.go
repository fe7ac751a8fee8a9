package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingPaid           BookingStatus = "PAID"
	BookingFailed         BookingStatus = "FAILED"
	BookingExpired        BookingStatus = "EXPIRED"
)

// Terminal reports whether the status is absorbing. A terminal booking is
// never mutated again; late provider events for it are logged and ignored.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingPaid, BookingFailed, BookingExpired:
		return true
	}
	return false
}

type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "STRIPE"
	ProviderMomo   PaymentProvider = "MOMO"
)

// Booking covers one or more seats through a payment lifecycle. Amount is
// fixed at creation from the per-seat price snapshots and never recomputed.
type Booking struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Amount                float64
	Status                BookingStatus
	PaymentProvider       PaymentProvider
	ProviderSessionID     string
	ProviderTransactionID string
	ExpiresAt             *time.Time
	CreatedAt             time.Time
	Seats                 []BookingSeat
}

// BookingSeat joins a booking to a seat with the price snapshotted at booking
// time, decoupling the booking amount from later seat price changes.
type BookingSeat struct {
	BookingID uuid.UUID
	SeatID    uuid.UUID
	Price     float64
}
