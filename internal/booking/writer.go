package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// Notifier delivers booking events after their transaction committed.
// Implementations publish to the broker or send SMS directly.
type Notifier interface {
	Notify(ctx context.Context, ev queue.BookingEvent) error
}

// Writer persists accepted reservations.  It only runs after the
// Validator accepted the request in the same transaction.
type Writer struct {
	sessions *repository.SessionRepo
	tickets  *repository.TicketRepo
}

// NewWriter returns a Writer over the session and ticket repositories.
func NewWriter(sessions *repository.SessionRepo, tickets *repository.TicketRepo) *Writer {
	return &Writer{sessions: sessions, tickets: tickets}
}

// CommitTx inserts one PENDING ticket per requested category under a new
// booking reference and refreshes the session's sold_out flag.  A nil
// expiresAt means the tickets never expire.  Lock conflicts are reported
// as repository.ErrConflict.
func (w *Writer) CommitTx(ctx context.Context, tx *sql.Tx, sessionID uint64, q model.Counts, p model.Purchaser, now time.Time, expiresAt *time.Time) ([]model.Ticket, error) {
	ref := uuid.NewString()
	tickets := make([]model.Ticket, 0, len(model.Categories))
	for _, c := range model.Categories {
		n := q.Get(c)
		if n == 0 {
			continue
		}
		tickets = append(tickets, model.Ticket{
			BookingRef: ref,
			SessionID:  sessionID,
			Category:   c,
			Quantity:   n,
			Status:     model.TicketPending,
			Purchaser:  p,
			ExpiresAt:  expiresAt,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := w.tickets.CreateTx(ctx, tx, tickets); err != nil {
		return nil, mapConflict("insert tickets", err)
	}
	if err := w.sessions.RefreshSoldOutTx(ctx, tx, sessionID); err != nil {
		return nil, mapConflict("refresh sold out", err)
	}
	return tickets, nil
}

func mapConflict(op string, err error) error {
	if repository.IsConflict(err) {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
