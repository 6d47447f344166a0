package model

import "time"

// TicketStatus is the lifecycle state of a ticket.  Allowed transitions
// are PENDING→ACTIVE, PENDING→CANCELLED and ACTIVE→CANCELLED.
type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketActive    TicketStatus = "ACTIVE"
	TicketCancelled TicketStatus = "CANCELLED"
)

// CanTransition reports whether moving from s to next is allowed.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketPending:
		return next == TicketActive || next == TicketCancelled
	case TicketActive:
		return next == TicketCancelled
	}
	return false
}

// Purchaser identifies whoever bought a booking.  Phone is used for SMS.
type Purchaser struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Ticket is one purchased bundle of a single category for a session.
// All tickets created by one purchase share a BookingRef.
//
// Fields:
//  ID         – primary key identifier.
//  BookingRef – public booking reference (UUID) shared by a purchase.
//  SessionID  – session the ticket admits to.
//  Category   – adult, student or child.
//  Quantity   – number of admissions in the bundle (≥ 1).
//  Status     – PENDING, ACTIVE or CANCELLED.
//  Purchaser  – buyer contact details.
//  ExpiresAt  – when an unpaid PENDING ticket is released (nil: never).
type Ticket struct {
	ID         uint64       `json:"id"`                   // tickets.id
	BookingRef string       `json:"booking_ref"`          // tickets.booking_ref
	SessionID  uint64       `json:"session_id"`           // tickets.session_id
	Category   Category     `json:"category"`             // tickets.category
	Quantity   int          `json:"quantity"`             // tickets.quantity
	Status     TicketStatus `json:"status"`               // tickets.status
	Purchaser  Purchaser    `json:"purchaser"`            // tickets.purchaser_*
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"` // tickets.expires_at (nullable)
	CreatedAt  time.Time    `json:"created_at"`           // tickets.created_at
	UpdatedAt  time.Time    `json:"updated_at"`           // tickets.updated_at
}
