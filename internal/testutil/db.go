// Package testutil provides an in-process SQL database for tests.  It
// mirrors the MySQL schema in SQLite so repositories and the booking
// service run their real SQL without a server.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA foreign_keys = ON;
CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT     NOT NULL UNIQUE,
    password_hash TEXT     NOT NULL,
    role          TEXT     NOT NULL DEFAULT 'STAFF',
    is_active     INTEGER  NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);
CREATE TABLE refresh_tokens (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    INTEGER  NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    token_hash TEXT     NOT NULL UNIQUE,
    expires_at DATETIME NOT NULL,
    revoked_at DATETIME NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX idx_refresh_tokens_user ON refresh_tokens (user_id);
CREATE TABLE event_days (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event_date DATE     NOT NULL,
    title      TEXT     NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE sessions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    event_day_id  INTEGER  NOT NULL REFERENCES event_days (id),
    starts_at     DATETIME NOT NULL,
    adult_limit   INTEGER  NOT NULL DEFAULT 0,
    student_limit INTEGER  NOT NULL DEFAULT 0,
    child_limit   INTEGER  NOT NULL DEFAULT 0,
    adult_sold    INTEGER  NOT NULL DEFAULT 0,
    student_sold  INTEGER  NOT NULL DEFAULT 0,
    child_sold    INTEGER  NOT NULL DEFAULT 0,
    is_active     INTEGER  NOT NULL DEFAULT 1,
    sold_out      INTEGER  NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL,
    CHECK (adult_limit >= 0 AND student_limit >= 0 AND child_limit >= 0),
    CHECK (adult_sold <= adult_limit AND student_sold <= student_limit AND child_sold <= child_limit)
);
CREATE INDEX idx_sessions_event_day ON sessions (event_day_id);
CREATE TABLE tickets (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    booking_ref     TEXT     NOT NULL,
    session_id      INTEGER  NOT NULL REFERENCES sessions (id) ON DELETE RESTRICT,
    category        TEXT     NOT NULL,
    quantity        INTEGER  NOT NULL CHECK (quantity > 0),
    status          TEXT     NOT NULL,
    purchaser_name  TEXT     NOT NULL,
    purchaser_phone TEXT     NOT NULL,
    purchaser_email TEXT     NOT NULL DEFAULT '',
    expires_at      DATETIME NULL,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL
);
CREATE INDEX idx_tickets_session_status ON tickets (session_id, status);
CREATE INDEX idx_tickets_booking_ref ON tickets (booking_ref);
CREATE INDEX idx_tickets_pending_expiry ON tickets (status, expires_at);
`

// OpenDB returns an empty in-memory database with the application schema.
// The pool is capped at one connection: every connection to ":memory:"
// is a separate database.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return applySchema(t, db)
}

// OpenFileDB returns an empty database in a file under t.TempDir() with
// a pool of conns connections, so transactions run concurrently the way
// they do against MySQL.  The file uses WAL with a busy timeout; writers
// that still lose a lock race get SQLITE_BUSY, which the repository
// reports as a conflict.
func OpenFileDB(t testing.TB, conns int) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickets.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	return applySchema(t, db)
}

func applySchema(t testing.TB, db *sql.DB) *sql.DB {
	t.Helper()
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// SeedSession creates an event day and an active session with the given
// limits and returns the session id.
func SeedSession(t testing.TB, db *sql.DB, adult, student, child int) uint64 {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	res, err := db.ExecContext(ctx,
		`INSERT INTO event_days (event_date, title, created_at) VALUES (?, ?, ?)`,
		time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "Test day", now)
	if err != nil {
		t.Fatalf("insert event day: %v", err)
	}
	dayID, _ := res.LastInsertId()
	res, err = db.ExecContext(ctx,
		`INSERT INTO sessions (event_day_id, starts_at, adult_limit, student_limit, child_limit, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		dayID, time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC), adult, student, child, now, now)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	id, _ := res.LastInsertId()
	return uint64(id)
}
