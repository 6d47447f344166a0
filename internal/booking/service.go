package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// ErrNotPayable is returned by Pay when none of the booking's tickets is
// pending or active, because it was cancelled or expired first.
var ErrNotPayable = errors.New("booking is cancelled or expired")

// Defaults applied by NewService.
const (
	DefaultMaxAttempts   = 3
	DefaultPendingTTL    = 30 * time.Minute
	DefaultRetryBackoff  = 20 * time.Millisecond
	DefaultNotifyTimeout = 10 * time.Second
)

// Request is a purchase for one session.
type Request struct {
	SessionID  uint64
	Quantities model.Counts
	Purchaser  model.Purchaser
}

// Result is the outcome of Reserve.  When Decision is not accepted the
// remaining fields are empty.
type Result struct {
	Decision   Decision
	BookingRef string
	Tickets    []model.Ticket
	ExpiresAt  *time.Time
}

// Service runs reservations and the ticket lifecycle.  Every operation
// is one database transaction; transactions that lose a lock race are
// retried up to the configured number of attempts.
type Service struct {
	db        *sql.DB
	sessions  *repository.SessionRepo
	tickets   *repository.TicketRepo
	calc      *Calculator
	validator *Validator
	writer    *Writer

	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time
	pendingTTL    time.Duration
	maxAttempts   int
	backoff       time.Duration
	isolation     sql.IsolationLevel
	notifyTimeout time.Duration

	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.  Times are truncated to whole seconds.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPendingTTL sets how long unpaid tickets hold capacity.  Zero
// disables expiry.
func WithPendingTTL(d time.Duration) Option { return func(s *Service) { s.pendingTTL = d } }

// WithMaxAttempts bounds the attempts per operation.  Values below one
// are treated as one.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.maxAttempts = n
	}
}

// WithRetryBackoff sets the base delay between attempts.  The delay
// grows linearly with the attempt number.
func WithRetryBackoff(d time.Duration) Option { return func(s *Service) { s.backoff = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithNotifier sets where committed booking events are delivered.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithNotifyTimeout bounds each asynchronous delivery.
func WithNotifyTimeout(d time.Duration) Option { return func(s *Service) { s.notifyTimeout = d } }

// WithIsolation sets the isolation level of booking transactions.
// MySQL deployments use sql.LevelReadCommitted so that the re-read after
// a refused claim sees the latest committed counters.
func WithIsolation(l sql.IsolationLevel) Option { return func(s *Service) { s.isolation = l } }

// NewService wires the calculator, validator and writer over the given
// repositories.
func NewService(sessions *repository.SessionRepo, tickets *repository.TicketRepo, opts ...Option) *Service {
	s := &Service{
		db:            sessions.DB(),
		sessions:      sessions,
		tickets:       tickets,
		now:           time.Now,
		pendingTTL:    DefaultPendingTTL,
		maxAttempts:   DefaultMaxAttempts,
		backoff:       DefaultRetryBackoff,
		notifyTimeout: DefaultNotifyTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.calc = NewCalculator(sessions, tickets, s.clock, s.logger)
	s.validator = NewValidator(sessions)
	s.writer = NewWriter(sessions, tickets)
	return s
}

// Calculator returns the availability calculator used by the service.
func (s *Service) Calculator() *Calculator { return s.calc }

// Wait blocks until every pending notification has been delivered or
// has failed.  Call it during shutdown.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) clock() time.Time { return s.now().UTC().Truncate(time.Second) }

// Reserve validates and commits a purchase in one transaction.  A
// rejection is returned as a Decision with a nil error.  Errors are
// infrastructure failures, context cancellation, or ErrUnavailable when
// every attempt lost a lock race.
func (s *Service) Reserve(ctx context.Context, req Request) (Result, error) {
	if d := CheckRequest(req.Quantities); !d.Accepted {
		return Result{Decision: d}, nil
	}
	var res Result
	var events []queue.BookingEvent
	err := s.withRetry(ctx, "reserve", func(ctx context.Context) error {
		res, events = Result{}, nil
		return s.inTx(ctx, func(tx *sql.Tx) error {
			now := s.clock()
			expired, err := s.expireTx(ctx, tx, req.SessionID, now)
			if err != nil {
				return err
			}
			d, err := s.validator.ValidateTx(ctx, tx, req.SessionID, req.Quantities, now)
			if err != nil {
				return mapConflict("validate", err)
			}
			res.Decision = d
			startsAt := s.sessionStart(ctx, tx, req.SessionID)
			events = groupEvents(queue.EventBookingExpired, expired, startsAt, now)
			if !d.Accepted {
				return nil
			}
			var exp *time.Time
			if s.pendingTTL > 0 {
				e := now.Add(s.pendingTTL)
				exp = &e
			}
			tickets, err := s.writer.CommitTx(ctx, tx, req.SessionID, req.Quantities, req.Purchaser, now, exp)
			if err != nil {
				return err
			}
			res.BookingRef = tickets[0].BookingRef
			res.Tickets = tickets
			res.ExpiresAt = exp
			events = append(events, groupEvents(queue.EventBookingCreated, tickets, startsAt, now)...)
			return nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	s.publish(events...)
	if res.Decision.Accepted {
		s.logger.InfoContext(ctx, "booking created",
			"booking_ref", res.BookingRef, "session_id", req.SessionID, "quantities", req.Quantities)
	} else {
		s.logger.InfoContext(ctx, "booking rejected",
			"session_id", req.SessionID, "quantities", req.Quantities, "reasons", res.Decision.Reasons)
	}
	return res, nil
}

// Lookup returns the tickets of a booking.
func (s *Service) Lookup(ctx context.Context, ref string) ([]model.Ticket, error) {
	return s.tickets.ListByBookingRef(ctx, ref)
}

// Pay marks every pending ticket of a booking ACTIVE.  Expired tickets
// of the session are released first so they cannot be paid.  Paying an
// already paid booking returns its tickets unchanged; a booking with no
// live ticket left yields ErrNotPayable.
func (s *Service) Pay(ctx context.Context, ref string) ([]model.Ticket, error) {
	var out []model.Ticket
	var events []queue.BookingEvent
	var payErr error
	err := s.withRetry(ctx, "pay booking", func(ctx context.Context) error {
		out, events, payErr = nil, nil, nil
		return s.inTx(ctx, func(tx *sql.Tx) error {
			now := s.clock()
			ts, err := s.tickets.ListByBookingRefTx(ctx, tx, ref)
			if err != nil {
				return err
			}
			sessionID := ts[0].SessionID
			startsAt := s.sessionStart(ctx, tx, sessionID)
			expired, err := s.expireTx(ctx, tx, sessionID, now)
			if err != nil {
				return err
			}
			events = groupEvents(queue.EventBookingExpired, expired, startsAt, now)
			if ts, err = s.tickets.ListByBookingRefTx(ctx, tx, ref); err != nil {
				return err
			}
			var paid []model.Ticket
			live := 0
			for i := range ts {
				t := &ts[i]
				switch t.Status {
				case model.TicketPending:
					changed, err := s.tickets.TransitionTx(ctx, tx, t.ID, model.TicketPending, model.TicketActive, now)
					if err != nil {
						return mapConflict("activate ticket", err)
					}
					if !changed {
						return repository.ErrConflict
					}
					t.Status, t.ExpiresAt, t.UpdatedAt = model.TicketActive, nil, now
					paid = append(paid, *t)
					live++
				case model.TicketActive:
					live++
				}
			}
			out = ts
			if live == 0 {
				// Commit anyway so the expiry sweep above is kept.
				payErr = ErrNotPayable
				return nil
			}
			events = append(events, groupEvents(queue.EventBookingPaid, paid, startsAt, now)...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(events...)
	if payErr != nil {
		return out, payErr
	}
	s.logger.InfoContext(ctx, "booking paid", "booking_ref", ref)
	return out, nil
}

// Cancel cancels every live ticket of a booking and returns its capacity
// to the session.  Cancelling a cancelled booking is a no-op.
func (s *Service) Cancel(ctx context.Context, ref string) ([]model.Ticket, error) {
	var out []model.Ticket
	var events []queue.BookingEvent
	err := s.withRetry(ctx, "cancel booking", func(ctx context.Context) error {
		out, events = nil, nil
		return s.inTx(ctx, func(tx *sql.Tx) error {
			now := s.clock()
			ts, err := s.tickets.ListByBookingRefTx(ctx, tx, ref)
			if err != nil {
				return err
			}
			var cancelled []model.Ticket
			for i := range ts {
				changed, err := s.cancelTicketTx(ctx, tx, &ts[i], now)
				if err != nil {
					return err
				}
				if changed {
					cancelled = append(cancelled, ts[i])
				}
			}
			out = ts
			if len(cancelled) == 0 {
				return nil
			}
			sessionID := ts[0].SessionID
			if err := s.sessions.RefreshSoldOutTx(ctx, tx, sessionID); err != nil {
				return mapConflict("refresh sold out", err)
			}
			events = groupEvents(queue.EventBookingCancelled, cancelled, s.sessionStart(ctx, tx, sessionID), now)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(events...)
	if len(events) > 0 {
		s.logger.InfoContext(ctx, "booking cancelled", "booking_ref", ref)
	}
	return out, nil
}

// CancelTicket cancels a single ticket of a booking.
func (s *Service) CancelTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	var out *model.Ticket
	var events []queue.BookingEvent
	err := s.withRetry(ctx, "cancel ticket", func(ctx context.Context) error {
		out, events = nil, nil
		return s.inTx(ctx, func(tx *sql.Tx) error {
			now := s.clock()
			t, err := s.tickets.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}
			changed, err := s.cancelTicketTx(ctx, tx, t, now)
			if err != nil {
				return err
			}
			out = t
			if !changed {
				return nil
			}
			if err := s.sessions.RefreshSoldOutTx(ctx, tx, t.SessionID); err != nil {
				return mapConflict("refresh sold out", err)
			}
			events = groupEvents(queue.EventBookingCancelled, []model.Ticket{*t}, s.sessionStart(ctx, tx, t.SessionID), now)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(events...)
	return out, nil
}

// SweepExpired releases every expired pending ticket across all sessions
// and returns how many tickets were expired.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.tickets.SessionsWithExpiredPending(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("find expired sessions: %w", err)
	}
	total := 0
	for _, id := range ids {
		var n int
		var events []queue.BookingEvent
		err := s.withRetry(ctx, "expire pending", func(ctx context.Context) error {
			n, events = 0, nil
			return s.inTx(ctx, func(tx *sql.Tx) error {
				now := s.clock()
				expired, err := s.expireTx(ctx, tx, id, now)
				if err != nil {
					return err
				}
				n = len(expired)
				events = groupEvents(queue.EventBookingExpired, expired, s.sessionStart(ctx, tx, id), now)
				return nil
			})
		})
		if err != nil {
			return total, err
		}
		s.publish(events...)
		total += n
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "expired pending tickets", "count", total, "sessions", len(ids))
	}
	return total, nil
}

// expireTx cancels the session's expired pending tickets and returns
// their capacity.  It returns the tickets it changed.
func (s *Service) expireTx(ctx context.Context, tx *sql.Tx, sessionID uint64, now time.Time) ([]model.Ticket, error) {
	expired, err := s.tickets.ExpiredPendingTx(ctx, tx, sessionID, now)
	if err != nil {
		return nil, mapConflict("list expired tickets", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}
	out := expired[:0]
	for i := range expired {
		changed, err := s.cancelTicketTx(ctx, tx, &expired[i], now)
		if err != nil {
			return nil, err
		}
		if changed {
			out = append(out, expired[i])
		}
	}
	if err := s.sessions.RefreshSoldOutTx(ctx, tx, sessionID); err != nil {
		return nil, mapConflict("refresh sold out", err)
	}
	return out, nil
}

// cancelTicketTx moves t to CANCELLED and releases its quantity.  It
// reports false for an already cancelled ticket.  If the row changed
// status underneath, ErrConflict makes the caller start over.
func (s *Service) cancelTicketTx(ctx context.Context, tx *sql.Tx, t *model.Ticket, now time.Time) (bool, error) {
	if t.Status == model.TicketCancelled {
		return false, nil
	}
	changed, err := s.tickets.TransitionTx(ctx, tx, t.ID, t.Status, model.TicketCancelled, now)
	if err != nil {
		return false, mapConflict("cancel ticket", err)
	}
	if !changed {
		return false, repository.ErrConflict
	}
	if err := s.sessions.ReleaseTx(ctx, tx, t.SessionID, t.Category, t.Quantity, now); err != nil {
		return false, mapConflict("release capacity", err)
	}
	t.Status, t.ExpiresAt, t.UpdatedAt = model.TicketCancelled, nil, now
	return true, nil
}

func (s *Service) sessionStart(ctx context.Context, tx *sql.Tx, id uint64) time.Time {
	sess, err := s.sessions.GetTx(ctx, tx, id)
	if err != nil {
		return time.Time{}
	}
	return sess.StartsAt
}

// inTx runs fn in a transaction and commits when fn returns nil.
func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapConflict("commit", err)
	}
	committed = true
	return nil
}

// withRetry runs fn until it succeeds, fails with a non-conflict error,
// or the attempts are used up, in which case ErrUnavailable is returned.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !repository.IsConflict(err) {
			return err
		}
		s.logger.WarnContext(ctx, "transaction conflict",
			"op", op, "attempt", attempt, "max_attempts", s.maxAttempts, "error", err)
		if attempt == s.maxAttempts {
			break
		}
		t := time.NewTimer(s.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%s: %w (last error: %v)", op, ErrUnavailable, err)
}

// publish delivers events in the background with a detached context.
// Failures are logged; the committed booking is never affected.
func (s *Service) publish(events ...queue.BookingEvent) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		for _, ev := range events {
			if err := s.notifier.Notify(ctx, ev); err != nil {
				s.logger.Warn("booking notification failed",
					"type", ev.Type, "booking_ref", ev.BookingRef, "error", err)
			}
		}
	}()
}

// groupEvents builds one event per booking reference, in first-seen order.
func groupEvents(typ string, tickets []model.Ticket, startsAt, now time.Time) []queue.BookingEvent {
	var out []queue.BookingEvent
	index := map[string]int{}
	for _, t := range tickets {
		i, ok := index[t.BookingRef]
		if !ok {
			ev := queue.BookingEvent{
				Type:       typ,
				BookingRef: t.BookingRef,
				SessionID:  t.SessionID,
				Status:     string(t.Status),
				Purchaser:  t.Purchaser,
				OccurredAt: now.Format(time.RFC3339),
			}
			if !startsAt.IsZero() {
				ev.SessionStartsAt = startsAt.UTC().Format(time.RFC3339)
			}
			if t.ExpiresAt != nil {
				ev.ExpiresAt = t.ExpiresAt.UTC().Format(time.RFC3339)
			}
			i = len(out)
			index[t.BookingRef] = i
			out = append(out, ev)
		}
		out[i].Quantities.Set(t.Category, out[i].Quantities.Get(t.Category)+t.Quantity)
	}
	return out
}
