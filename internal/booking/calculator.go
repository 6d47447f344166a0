package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// LimitsReader reads configured limits for a batch of sessions.  Missing
// sessions are absent from the result.
type LimitsReader interface {
	LimitsBatch(ctx context.Context, ids []uint64) (map[uint64]model.Counts, error)
}

// SoldCounter sums non-cancelled ticket quantities per session and
// category.  Holds that expired at or before now do not count.
type SoldCounter interface {
	CountSoldBySessions(ctx context.Context, ids []uint64, now time.Time) (map[uint64]model.Counts, error)
}

// Calculator derives availability snapshots.  It is a pure aggregation
// over two batched reads and holds no state.
type Calculator struct {
	limits LimitsReader
	sold   SoldCounter
	now    func() time.Time
	logger *slog.Logger
}

// NewCalculator returns a Calculator.  A nil now uses time.Now and a nil
// logger discards output.
func NewCalculator(limits LimitsReader, sold SoldCounter, now func() time.Time, logger *slog.Logger) *Calculator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Calculator{limits: limits, sold: sold, now: now, logger: logger}
}

// ComputeAvailability returns a snapshot for every requested session.
// Unknown ids get zero limits and Unknown=true instead of failing the
// batch.  Remaining is never clamped; a negative value marks the
// snapshot Oversold and is logged as an invariant violation.
func (c *Calculator) ComputeAvailability(ctx context.Context, ids []uint64) (map[uint64]model.Snapshot, error) {
	ids = dedupe(ids)
	limits, err := c.limits.LimitsBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load limits: %w", err)
	}
	sold, err := c.sold.CountSoldBySessions(ctx, ids, c.now())
	if err != nil {
		return nil, fmt.Errorf("count sold: %w", err)
	}
	out := make(map[uint64]model.Snapshot, len(ids))
	for _, id := range ids {
		lim, known := limits[id]
		snap := model.Snapshot{
			SessionID: id,
			Limits:    lim,
			Sold:      sold[id],
			Unknown:   !known,
		}
		snap.Remaining = snap.Limits.Sub(snap.Sold)
		snap.Oversold = snap.Remaining.AnyNegative()
		if snap.Oversold {
			c.logger.ErrorContext(ctx, "session oversold",
				"session_id", id, "limits", snap.Limits, "sold", snap.Sold)
		}
		out[id] = snap
	}
	return out, nil
}

// ForSession returns the snapshot of one session, or
// repository.ErrSessionNotFound when it does not exist.
func (c *Calculator) ForSession(ctx context.Context, id uint64) (model.Snapshot, error) {
	m, err := c.ComputeAvailability(ctx, []uint64{id})
	if err != nil {
		return model.Snapshot{}, err
	}
	snap := m[id]
	if snap.Unknown {
		return snap, repository.ErrSessionNotFound
	}
	return snap, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
