package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// CheckRequest performs the checks that do not need the database.  It
// returns an accepting decision when the quantities are well formed.
// Negative quantities win over an empty request.
func CheckRequest(q model.Counts) Decision {
	if q.AnyNegative() {
		return Reject(nil, ReasonInvalidQuantity)
	}
	if q.IsZero() {
		return Reject(nil, ReasonEmptyRequest)
	}
	return Accept()
}

// Validator decides whether a request fits the remaining capacity of a
// session.  The decision and the capacity claim are one statement, so an
// accepted request has already been counted when ValidateTx returns.
type Validator struct {
	sessions *repository.SessionRepo
}

// NewValidator returns a Validator over the session ledger.
func NewValidator(sessions *repository.SessionRepo) *Validator {
	return &Validator{sessions: sessions}
}

// ValidateTx claims q on the session inside tx.  When the claim is
// refused the session row is read again in the same transaction to
// explain why.  If the row shows enough capacity after all, the claim
// lost a race against a concurrent commit and repository.ErrConflict is
// returned so the caller retries.
func (v *Validator) ValidateTx(ctx context.Context, tx *sql.Tx, sessionID uint64, q model.Counts, now time.Time) (Decision, error) {
	if d := CheckRequest(q); !d.Accepted {
		return d, nil
	}
	ok, err := v.sessions.ClaimTx(ctx, tx, sessionID, q, now)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Accept(), nil
	}
	s, err := v.sessions.GetTx(ctx, tx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return Reject(nil, ReasonSessionNotFound), nil
	}
	if err != nil {
		return Decision{}, err
	}
	snap := snapshotOf(s)
	if !s.IsActive {
		return Reject(&snap, ReasonSessionClosed), nil
	}
	var reasons []Reason
	for _, c := range model.Categories {
		if q.Get(c) > snap.Remaining.Get(c) {
			reasons = append(reasons, insufficientReason[c])
		}
	}
	if len(reasons) == 0 {
		return Decision{}, repository.ErrConflict
	}
	return Reject(&snap, reasons...), nil
}

func snapshotOf(s *model.Session) model.Snapshot {
	snap := model.Snapshot{
		SessionID: s.ID,
		Limits:    s.Limits,
		Sold:      s.Sold,
		Remaining: s.Remaining(),
	}
	snap.Oversold = snap.Remaining.AnyNegative()
	return snap
}
