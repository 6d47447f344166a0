package booking

import (
	"context"
	"log/slog"
	"time"
)

// TokenPurger removes refresh tokens that can no longer be used.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Reaper periodically releases expired pending tickets so capacity held
// by abandoned bookings returns even when nobody buys for that session.
// It also purges dead refresh tokens on the same schedule.
type Reaper struct {
	svc      *Service
	tokens   TokenPurger
	interval time.Duration
	logger   *slog.Logger
}

// NewReaper returns a Reaper.  tokens may be nil.
func NewReaper(svc *Service, tokens TokenPurger, interval time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reaper{svc: svc, tokens: tokens, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is cancelled.  A non-positive
// interval disables the loop.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("reaper disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reaper sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep and returns the number of tickets
// expired.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	n, err := r.svc.SweepExpired(ctx)
	if err != nil {
		return n, err
	}
	if r.tokens != nil {
		purged, err := r.tokens.PurgeExpired(ctx, r.svc.clock())
		if err != nil {
			return n, err
		}
		if purged > 0 {
			r.logger.Debug("purged refresh tokens", "count", purged)
		}
	}
	return n, nil
}
