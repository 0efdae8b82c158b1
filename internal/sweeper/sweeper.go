// Package sweeper periodically deletes seat reservations whose checkout
// window has lapsed and tells the seat stream which showings changed.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/config"
)

// ReservationStore deletes reserved tickets older than cutoff and returns
// the showings it touched.
type ReservationStore interface {
	DeleteExpiredReservations(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// Notifier pushes a fresh seat snapshot for a showing.
type Notifier interface {
	Notify(ctx context.Context, showingID uint64)
}

// Sweeper removes stale reservations on a fixed interval.
type Sweeper struct {
	store    ReservationStore
	notifier Notifier
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(store ReservationStore, notifier Notifier, cfg config.SweeperConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		ttl:      cfg.ReservationTTL,
		interval: cfg.Interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("reservation sweeper started",
		zap.Duration("ttl", s.ttl), zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, s.now()); err != nil && ctx.Err() == nil {
				s.logger.Error("reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce deletes reservations made before now-ttl and notifies each
// affected showing once.  It returns the affected showing ids.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) ([]uint64, error) {
	showings, err := s.store.DeleteExpiredReservations(ctx, now.Add(-s.ttl))
	if err != nil {
		return nil, err
	}
	if len(showings) == 0 {
		return nil, nil
	}
	s.logger.Info("expired reservations removed", zap.Uint64s("showing_ids", showings))
	for _, id := range showings {
		s.notifier.Notify(ctx, id)
	}
	return showings, nil
}
