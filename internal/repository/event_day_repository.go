package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
)

// EventDayRepo manages persistence for event days.
type EventDayRepo struct {
	db *sql.DB
}

// NewEventDayRepo constructs an EventDayRepo with the given DB handle.
func NewEventDayRepo(db *sql.DB) *EventDayRepo { return &EventDayRepo{db: db} }

// Create inserts a new event day and assigns the generated ID.
func (r *EventDayRepo) Create(ctx context.Context, d *model.EventDay) error {
	d.EventDate = time.Date(d.EventDate.Year(), d.EventDate.Month(), d.EventDate.Day(), 0, 0, 0, 0, time.UTC)
	d.CreatedAt = nowUTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO event_days (event_date, title, created_at) VALUES (?, ?, ?)`,
		d.EventDate, d.Title, d.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// GetByID returns one event day or ErrEventDayNotFound.
func (r *EventDayRepo) GetByID(ctx context.Context, id uint64) (*model.EventDay, error) {
	var d model.EventDay
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_date, title, created_at FROM event_days WHERE id = ?`, id,
	).Scan(&d.ID, &d.EventDate, &d.Title, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventDayNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List returns all event days, earliest first.
func (r *EventDayRepo) List(ctx context.Context) ([]model.EventDay, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, event_date, title, created_at FROM event_days ORDER BY event_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.EventDay, 0)
	for rows.Next() {
		var d model.EventDay
		if err := rows.Scan(&d.ID, &d.EventDate, &d.Title, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
