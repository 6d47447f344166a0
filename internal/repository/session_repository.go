package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
)

// SessionRepo is the capacity ledger.  It reads session limits and owns
// the *_sold counters, which are only modified through conditional
// updates so that concurrent purchases on the same session serialize on
// the session row inside the database rather than in process memory.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning the session and ticket repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionColumns = `id, event_day_id, starts_at,
	adult_limit, student_limit, child_limit,
	adult_sold, student_sold, child_sold,
	is_active, sold_out, created_at, updated_at`

// soldColumn maps a category to its ledger column.  Only these fixed
// names are ever interpolated into SQL.
var soldColumn = map[model.Category]string{
	model.CategoryAdult:   "adult_sold",
	model.CategoryStudent: "student_sold",
	model.CategoryChild:   "child_sold",
}

func scanSession(row rowScanner) (model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID, &s.EventDayID, &s.StartsAt,
		&s.Limits.Adult, &s.Limits.Student, &s.Limits.Child,
		&s.Sold.Adult, &s.Sold.Student, &s.Sold.Child,
		&s.IsActive, &s.SoldOut, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func getSession(ctx context.Context, q queryer, id uint64) (*model.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByID returns the full ledger row of a session or ErrSessionNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	return getSession(ctx, r.db, id)
}

// GetTx is GetByID within the caller's transaction.
func (r *SessionRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Session, error) {
	return getSession(ctx, tx, id)
}

// GetLimits returns the configured per-category limits of a session.
func (r *SessionRepo) GetLimits(ctx context.Context, id uint64) (model.Counts, error) {
	var c model.Counts
	err := r.db.QueryRowContext(ctx,
		`SELECT adult_limit, student_limit, child_limit FROM sessions WHERE id = ?`, id,
	).Scan(&c.Adult, &c.Student, &c.Child)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Counts{}, ErrSessionNotFound
	}
	return c, err
}

// LimitsBatch fetches the limits of many sessions in one query.  Ids that
// do not exist are absent from the returned map.
func (r *SessionRepo) LimitsBatch(ctx context.Context, ids []uint64) (map[uint64]model.Counts, error) {
	out := make(map[uint64]model.Counts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, adult_limit, student_limit, child_limit FROM sessions WHERE id IN (`+placeholders(len(ids))+`)`,
		uint64Args(ids)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var c model.Counts
		if err := rows.Scan(&id, &c.Adult, &c.Student, &c.Child); err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, rows.Err()
}

// List returns every session ordered by start time.
func (r *SessionRepo) List(ctx context.Context) ([]model.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY starts_at, id`)
}

// ListByEventDay returns the sessions of one event day ordered by start time.
func (r *SessionRepo) ListByEventDay(ctx context.Context, eventDayID uint64) ([]model.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE event_day_id = ? ORDER BY starts_at, id`, eventDayID)
}

func (r *SessionRepo) list(ctx context.Context, q string, args ...any) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a new session with zero sold counts.  The event day must
// exist.  ID and timestamps are populated on s.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	if s.Limits.AnyNegative() {
		return fmt.Errorf("negative session limit")
	}
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_days WHERE id = ?`, s.EventDayID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrEventDayNotFound
	}
	now := nowUTC()
	soldOut := s.Limits.IsZero()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (event_day_id, starts_at, adult_limit, student_limit, child_limit,
			adult_sold, student_sold, child_sold, is_active, sold_out, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?)`,
		s.EventDayID, s.StartsAt.UTC(), s.Limits.Adult, s.Limits.Student, s.Limits.Child,
		s.IsActive, soldOut, now, now,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Sold = model.Counts{}
	s.SoldOut = soldOut
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// ClaimTx atomically adds q to the session's sold counters if, and only
// if, the session is active and no category would exceed its limit.  It
// reports whether the claim was applied.  A false result leaves the row
// untouched; the caller decides why by re-reading it.
//
// The guards compare against limit - sold so that a huge quantity never
// enters an addition; MySQL rejects an out-of-range INT sum with an
// error instead of a false predicate.
func (r *SessionRepo) ClaimTx(ctx context.Context, tx *sql.Tx, id uint64, q model.Counts, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET adult_sold = adult_sold + ?, student_sold = student_sold + ?, child_sold = child_sold + ?, updated_at = ?
		 WHERE id = ? AND is_active = 1
		   AND ? <= adult_limit - adult_sold
		   AND ? <= student_limit - student_sold
		   AND ? <= child_limit - child_sold`,
		q.Adult, q.Student, q.Child, now,
		id,
		q.Adult, q.Student, q.Child,
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

// ReleaseTx returns n units of one category to the session.
func (r *SessionRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id uint64, cat model.Category, n int, now time.Time) error {
	col, ok := soldColumn[cat]
	if !ok {
		return fmt.Errorf("unknown category %q", cat)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE sessions SET `+col+` = `+col+` - ?, updated_at = ? WHERE id = ?`,
		n, now, id,
	)
	return err
}

// RefreshSoldOutTx recomputes the derived sold_out flag from the ledger.
func (r *SessionRepo) RefreshSoldOutTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE sessions
		 SET sold_out = CASE WHEN adult_sold >= adult_limit AND student_sold >= student_limit AND child_sold >= child_limit THEN 1 ELSE 0 END
		 WHERE id = ?`,
		id,
	)
	return err
}

// UpdateLimits replaces the limits of a session.  It refuses, with
// ErrConflict, to set any limit below the number already sold.
func (r *SessionRepo) UpdateLimits(ctx context.Context, id uint64, limits model.Counts) (*model.Session, error) {
	return r.Update(ctx, id, &limits, nil)
}

// Update applies new limits and the sales flag, either of which may be
// nil, in one transaction: when the limits are refused the flag is left
// as it was.  Limits below the number already sold give ErrConflict.
func (r *SessionRepo) Update(ctx context.Context, id uint64, limits *model.Counts, active *bool) (*model.Session, error) {
	if limits != nil && limits.AnyNegative() {
		return nil, fmt.Errorf("negative session limit")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	now := nowUTC()
	if active != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = ?, updated_at = ? WHERE id = ?`, *active, now, id); err != nil {
			return nil, err
		}
	}
	if limits != nil {
		if err := r.updateLimitsTx(ctx, tx, id, *limits, now); err != nil {
			return nil, err
		}
	}
	s, err := r.GetTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return s, nil
}

func (r *SessionRepo) updateLimitsTx(ctx context.Context, tx *sql.Tx, id uint64, limits model.Counts, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET adult_limit = ?, student_limit = ?, child_limit = ?, updated_at = ?
		 WHERE id = ? AND adult_sold <= ? AND student_sold <= ? AND child_sold <= ?`,
		limits.Adult, limits.Student, limits.Child, now,
		id, limits.Adult, limits.Student, limits.Child,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		// Either missing, or the new limits undercut what is sold.
		s, err := r.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if limits.Sub(s.Sold).AnyNegative() {
			return ErrConflict
		}
	}
	return r.RefreshSoldOutTx(ctx, tx, id)
}

// SetActive opens or closes a session for sales.
func (r *SessionRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.Update(ctx, id, nil, &active)
	return err
}

// Delete removes a session that no ticket references.  Sessions with
// tickets, cancelled or not, are kept and ErrConflict is returned.
func (r *SessionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND NOT EXISTS (SELECT 1 FROM tickets WHERE tickets.session_id = ?)`,
		id, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}
