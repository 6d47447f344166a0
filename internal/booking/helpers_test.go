package booking

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/testutil"
)

// fakeClock is a settable clock shared with the service under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.BookingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) ofType(typ string) []queue.BookingEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []queue.BookingEvent
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	db       *sql.DB
	sessions *repository.SessionRepo
	tickets  *repository.TicketRepo
	svc      *Service
	clock    *fakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.OpenDB(t), opts...)
}

// newFixtureOn builds a fixture over db, which may allow several
// concurrent connections.
func newFixtureOn(t *testing.T, db *sql.DB, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		db:       db,
		sessions: repository.NewSessionRepo(db),
		tickets:  repository.NewTicketRepo(db),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithNotifier(f.notifier),
		WithRetryBackoff(time.Millisecond),
	}
	f.svc = NewService(f.sessions, f.tickets, append(base, opts...)...)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) reserve(t *testing.T, sessionID uint64, q model.Counts) Result {
	t.Helper()
	res, err := f.svc.Reserve(context.Background(), Request{
		SessionID:  sessionID,
		Quantities: q,
		Purchaser:  model.Purchaser{Name: "Ada", Phone: "+15550100"},
	})
	if err != nil {
		t.Fatalf("Reserve(%+v): %v", q, err)
	}
	return res
}

func (f *fixture) snapshot(t *testing.T, sessionID uint64) model.Snapshot {
	t.Helper()
	snap, err := f.svc.Calculator().ForSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ForSession(%d): %v", sessionID, err)
	}
	return snap
}

func wantReasons(t *testing.T, d Decision, want ...Reason) {
	t.Helper()
	if d.Accepted {
		t.Fatalf("decision accepted, want rejection %v", want)
	}
	if len(d.Reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", d.Reasons, want)
	}
	for i := range want {
		if d.Reasons[i] != want[i] {
			t.Fatalf("reasons = %v, want %v", d.Reasons, want)
		}
	}
}

func (f *fixture) seed(t *testing.T, adult, student, child int) uint64 {
	t.Helper()
	return testutil.SeedSession(t, f.db, adult, student, child)
}
