package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatly_bookings_created_total",
			Help: "Bookings successfully created",
		},
	)

	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatly_booking_conflicts_total",
			Help: "Booking attempts rejected because a seat was unavailable",
		},
	)

	PaymentLinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatly_payment_links_created_total",
			Help: "Checkout sessions opened, by provider",
		},
		[]string{"provider"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatly_webhook_events_total",
			Help: "Provider webhook events by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	SeatsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatly_seats_released_total",
			Help: "Seat locks released, by reason",
		},
		[]string{"reason"},
	)

	ExpiryJobsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatly_expiry_jobs_scheduled_total",
			Help: "Seat expiry jobs scheduled",
		},
	)

	ExpiryScheduleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatly_expiry_schedule_failures_total",
			Help: "Seat expiry jobs that could not be scheduled after retries",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatly_db_tx_seconds",
			Help:    "Duration of booking store transactions",
			Buckets: prometheus.DefBuckets,
		},
	)
)
