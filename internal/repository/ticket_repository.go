package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
)

// TicketRepo provides access to the tickets table.  Ticket rows and the
// session ledger must be written in the same transaction; the Tx methods
// here never touch the ledger themselves.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, booking_ref, session_id, category, quantity, status,
	purchaser_name, purchaser_phone, purchaser_email, expires_at, created_at, updated_at`

func scanTicket(row rowScanner) (model.Ticket, error) {
	var t model.Ticket
	var cat, status string
	var expires sql.NullTime
	err := row.Scan(
		&t.ID, &t.BookingRef, &t.SessionID, &cat, &t.Quantity, &status,
		&t.Purchaser.Name, &t.Purchaser.Phone, &t.Purchaser.Email,
		&expires, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}
	if t.Category, err = model.ParseCategory(cat); err != nil {
		return t, err
	}
	t.Status = model.TicketStatus(status)
	if expires.Valid {
		e := expires.Time.UTC()
		t.ExpiresAt = &e
	}
	return t, nil
}

func listTickets(ctx context.Context, q queryer, query string, args ...any) ([]model.Ticket, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTx inserts the tickets within the caller's transaction and sets
// the generated ID on each element.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	const q = `INSERT INTO tickets (booking_ref, session_id, category, quantity, status,
		purchaser_name, purchaser_phone, purchaser_email, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i := range tickets {
		t := &tickets[i]
		var expires any
		if t.ExpiresAt != nil {
			expires = t.ExpiresAt.UTC()
		}
		res, err := tx.ExecContext(ctx, q,
			t.BookingRef, t.SessionID, string(t.Category), t.Quantity, string(t.Status),
			t.Purchaser.Name, t.Purchaser.Phone, t.Purchaser.Email, expires, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
	}
	return nil
}

// CountSoldBySessions sums the quantities of non-cancelled tickets grouped
// by session and category.  PENDING tickets whose hold ran out at or
// before now are left out even if no sweep has cancelled them yet.
// Sessions without tickets are absent.
func (r *TicketRepo) CountSoldBySessions(ctx context.Context, ids []uint64, now time.Time) (map[uint64]model.Counts, error) {
	out := make(map[uint64]model.Counts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := append(uint64Args(ids), string(model.TicketCancelled), string(model.TicketPending), now)
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, category, COALESCE(SUM(quantity), 0)
		 FROM tickets
		 WHERE session_id IN (`+placeholders(len(ids))+`) AND status <> ?
		   AND NOT (status = ? AND expires_at IS NOT NULL AND expires_at <= ?)
		 GROUP BY session_id, category`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid uint64
		var cat string
		var n int
		if err := rows.Scan(&sid, &cat, &n); err != nil {
			return nil, err
		}
		c, err := model.ParseCategory(cat)
		if err != nil {
			return nil, err
		}
		counts := out[sid]
		counts.Set(c, counts.Get(c)+n)
		out[sid] = counts
	}
	return out, rows.Err()
}

// ListByBookingRef returns the tickets of a booking or ErrBookingNotFound.
func (r *TicketRepo) ListByBookingRef(ctx context.Context, ref string) ([]model.Ticket, error) {
	return r.listByRef(ctx, r.db, ref)
}

// ListByBookingRefTx is ListByBookingRef inside a transaction.
func (r *TicketRepo) ListByBookingRefTx(ctx context.Context, tx *sql.Tx, ref string) ([]model.Ticket, error) {
	return r.listByRef(ctx, tx, ref)
}

func (r *TicketRepo) listByRef(ctx context.Context, q queryer, ref string) ([]model.Ticket, error) {
	ts, err := listTickets(ctx, q, `SELECT `+ticketColumns+` FROM tickets WHERE booking_ref = ? ORDER BY id`, ref)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, ErrBookingNotFound
	}
	return ts, nil
}

// ListBySession returns every ticket of a session, newest first.
func (r *TicketRepo) ListBySession(ctx context.Context, sessionID uint64) ([]model.Ticket, error) {
	return listTickets(ctx, r.db, `SELECT `+ticketColumns+` FROM tickets WHERE session_id = ? ORDER BY created_at DESC, id DESC`, sessionID)
}

// GetByIDTx returns one ticket inside a transaction or ErrTicketNotFound.
func (r *TicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ExpiredPendingTx lists PENDING tickets of a session whose expires_at is
// at or before now.
func (r *TicketRepo) ExpiredPendingTx(ctx context.Context, tx *sql.Tx, sessionID uint64, now time.Time) ([]model.Ticket, error) {
	return listTickets(ctx, tx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE session_id = ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY id`,
		sessionID, string(model.TicketPending), now,
	)
}

// SessionsWithExpiredPending returns the distinct sessions that have at
// least one expired PENDING ticket.
func (r *TicketRepo) SessionsWithExpiredPending(ctx context.Context, now time.Time) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM tickets WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		string(model.TicketPending), now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TransitionTx moves one ticket from `from` to `to`.  The update is
// conditional on the current status, so of two concurrent transitions
// only one applies; it reports whether this call changed the row.
func (r *TicketRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.TicketStatus, now time.Time) (bool, error) {
	if !from.CanTransition(to) {
		return false, ErrInvalidTransition
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, expires_at = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), now, id, string(from),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
