package seatstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

// SeatStatusSource computes a showing's current seat snapshot.
type SeatStatusSource interface {
	SeatStatuses(ctx context.Context, showingID uint64) ([]model.SeatStatus, error)
}

// Dispatcher broadcasts seat snapshots to a Registry's subscribers.
type Dispatcher struct {
	registry *Registry
	source   SeatStatusSource
	logger   *zap.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewDispatcher wires a dispatcher to its registry and snapshot source.
// NotifyAsync calls are bounded by the registry's NotifyTimeout.
func NewDispatcher(registry *Registry, source SeatStatusSource, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := registry.Config().NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		source:   source,
		logger:   logger,
		timeout:  timeout,
	}
}

// Notify writes the showing's current snapshot to every subscriber.
// Nothing is queried when the showing has no subscribers.  Connections
// whose write fails are unsubscribed after the pass.  Errors are logged
// and never returned: the mutation that triggered the notify has already
// succeeded.
func (d *Dispatcher) Notify(ctx context.Context, showingID uint64) {
	if d.registry.Count(showingID) == 0 {
		return
	}

	frame, err := d.snapshotFrame(ctx, showingID)
	if err != nil {
		d.logger.Error("seat snapshot failed", zap.Uint64("showing_id", showingID), zap.Error(err))
		return
	}

	var dead []*Connection
	sent := 0
	d.registry.ForEachSubscriber(showingID, func(conn *Connection) {
		if err := conn.Send(frame); err != nil {
			dead = append(dead, conn)
			return
		}
		sent++
	})
	for _, conn := range dead {
		d.registry.Unsubscribe(showingID, conn)
	}

	d.logger.Debug("seat snapshot broadcast",
		zap.Uint64("showing_id", showingID),
		zap.Int("sent", sent),
		zap.Int("dropped", len(dead)))
}

// NotifyAsync runs Notify in the background with its own timeout.  It is
// the hook mutation handlers call after commit.
func (d *Dispatcher) NotifyAsync(showingID uint64) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("notify panicked", zap.Uint64("showing_id", showingID), zap.Any("panic", rec))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.Notify(ctx, showingID)
	}()
}

// Wait blocks until all NotifyAsync calls have finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Bootstrap writes the current snapshot to a single connection that is
// about to be subscribed.  A failed query is logged and skipped, so the
// client simply waits for the next broadcast; only a failed write is
// returned.
func (d *Dispatcher) Bootstrap(ctx context.Context, showingID uint64, conn *Connection) error {
	frame, err := d.snapshotFrame(ctx, showingID)
	if err != nil {
		d.logger.Error("bootstrap snapshot failed", zap.Uint64("showing_id", showingID), zap.Error(err))
		return nil
	}
	return conn.Send(frame)
}

func (d *Dispatcher) snapshotFrame(ctx context.Context, showingID uint64) ([]byte, error) {
	seats, err := d.source.SeatStatuses(ctx, showingID)
	if err != nil {
		return nil, fmt.Errorf("query seat statuses: %w", err)
	}
	if seats == nil {
		seats = []model.SeatStatus{}
	}
	frame, err := EncodeEvent(EventSeats, seats)
	if err != nil {
		return nil, fmt.Errorf("encode seat statuses: %w", err)
	}
	return frame, nil
}
