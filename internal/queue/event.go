// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into SMS notifications.
package queue

import "github.com/iliyamo/ticket-sales/internal/model"

// Booking event types published on the booking events queue.
const (
	EventBookingCreated   = "booking.created"
	EventBookingPaid      = "booking.paid"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is published after a booking transaction commits.  It
// carries enough information for downstream consumers to notify the
// purchaser without querying the primary database.
type BookingEvent struct {
	Type            string          `json:"type"`
	BookingRef      string          `json:"booking_ref"`
	SessionID       uint64          `json:"session_id"`
	SessionStartsAt string          `json:"session_starts_at"`
	Quantities      model.Counts    `json:"quantities"`
	Status          string          `json:"status"`
	Purchaser       model.Purchaser `json:"purchaser"`
	ExpiresAt       string          `json:"expires_at,omitempty"`
	OccurredAt      string          `json:"occurred_at"`
}
