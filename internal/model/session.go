package model

import "time"

// EventDay groups the sessions that run on one calendar date.
//
// Fields:
//  ID        – primary key identifier.
//  EventDate – calendar day of the event (UTC midnight).
//  Title     – display name for the day.
//  CreatedAt – creation timestamp.
type EventDay struct {
	ID        uint64    `json:"id"`         // event_days.id
	EventDate time.Time `json:"event_date"` // event_days.event_date
	Title     string    `json:"title"`      // event_days.title
	CreatedAt time.Time `json:"created_at"` // event_days.created_at
}

// Session is a scheduled timeslot of an event day with independent
// capacity limits for each ticket category.  Sold mirrors the sum of
// non-cancelled ticket quantities and is only ever changed in the same
// transaction that changes ticket rows.
//
// Fields:
//  ID         – primary key identifier.
//  EventDayID – owning event day.
//  StartsAt   – when the session begins.
//  Limits     – adult/student/child ceilings (non-negative).
//  Sold       – committed counts per category.
//  IsActive   – false once an admin closes the session to sales.
//  SoldOut    – derived flag, true when every category is at its limit.
type Session struct {
	ID         uint64    `json:"id"`           // sessions.id
	EventDayID uint64    `json:"event_day_id"` // sessions.event_day_id
	StartsAt   time.Time `json:"starts_at"`    // sessions.starts_at
	Limits     Counts    `json:"limits"`       // sessions.{adult,student,child}_limit
	Sold       Counts    `json:"sold"`         // sessions.{adult,student,child}_sold
	IsActive   bool      `json:"is_active"`    // sessions.is_active
	SoldOut    bool      `json:"sold_out"`     // sessions.sold_out
	CreatedAt  time.Time `json:"created_at"`   // sessions.created_at
	UpdatedAt  time.Time `json:"updated_at"`   // sessions.updated_at
}

// Remaining returns Limits - Sold without clamping.
func (s Session) Remaining() Counts { return s.Limits.Sub(s.Sold) }
