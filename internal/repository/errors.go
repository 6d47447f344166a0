// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the booking service to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrEventDayNotFound is returned when an event day id does not exist.
var ErrEventDayNotFound = errors.New("event day not found")

// ErrBookingNotFound is returned when no ticket carries the booking reference.
var ErrBookingNotFound = errors.New("booking not found")

// ErrTicketNotFound is returned when a ticket id does not exist.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrConflict signals that an operation cannot proceed because of
// conflicting state: a transaction lost a lock race, a limit would drop
// below the sold count, or a session still has tickets.  Handlers
// translate it into an HTTP 409; the booking service retries it.
var ErrConflict = errors.New("conflict")

// ErrInvalidTransition is returned when a ticket status change is not
// allowed by the ticket lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// MySQL server error numbers that indicate a transient lock conflict.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// IsConflict reports whether err means the transaction lost a race and
// can be retried from the start.  SQLite, used in tests, reports a lost
// race as SQLITE_BUSY or SQLITE_LOCKED, possibly with an extended code.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// isDuplicate reports whether err is a unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
