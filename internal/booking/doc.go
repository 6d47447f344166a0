// Package booking implements capacity-safe ticket reservation.
//
// The availability Calculator derives remaining capacity per session and
// category from the session limits and the non-cancelled tickets.  The
// Validator decides whether a request fits, and the Writer persists the
// accepted tickets.  Service runs validation and commit inside a single
// database transaction: the capacity claim is a conditional UPDATE on
// the session row, so concurrent purchases on one session serialize in
// the database and different sessions never contend.  Lost lock races
// are retried a bounded number of times before ErrUnavailable is
// returned.
package booking
