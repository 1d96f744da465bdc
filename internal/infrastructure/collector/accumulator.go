// Package collector implements the in-process accumulator that coalesces
// per-room, per-user counter increments between flushes of the raw event log.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/metrics"
	"github.com/NhanHo/screepsmod-stats/pkg/logger"
)

// Accumulator owns the process-wide pending counter table. Increments are
// in-memory only and never fail; durability happens on Flush, which snapshots
// and clears the table under the lock and appends one batch to the event log.
type Accumulator struct {
	mu      sync.Mutex
	pending map[shared.RoomID]map[shared.UserID]stats.Metrics

	log stats.RawEventRepository
	lg  *logger.Logger
	now func() time.Time
}

// Option configures the Accumulator.
type Option func(*Accumulator)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) {
		a.now = now
	}
}

// New creates an empty accumulator writing to the given event log.
func New(log stats.RawEventRepository, lg *logger.Logger, opts ...Option) *Accumulator {
	a := &Accumulator{
		pending: make(map[shared.RoomID]map[shared.UserID]stats.Metrics),
		log:     log,
		lg:      lg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Increment adds amount to the running total for (room, user, metric).
// No I/O happens here; the call always succeeds.
func (a *Accumulator) Increment(room shared.RoomID, user shared.UserID, metric stats.MetricName, amount int64) {
	if amount == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	byUser, ok := a.pending[room]
	if !ok {
		byUser = make(map[shared.UserID]stats.Metrics)
		a.pending[room] = byUser
	}
	m, ok := byUser[user]
	if !ok {
		m = make(stats.Metrics)
		byUser[user] = m
	}
	m[metric] += amount
}

// Flush atomically snapshots and clears the pending table, builds one
// RawStatEvent per (room, user) with at least one nonzero metric, and
// appends them to the event log as a single batch. Returns the number of
// events written. Flushing an empty accumulator is a no-op.
//
// Increments arriving concurrently with a flush land in the fresh table and
// are carried by the next flush; nothing is lost or double-counted. If the
// append fails, the snapshot is merged back so the next flush retries it.
func (a *Accumulator) Flush(ctx context.Context) (int, error) {
	a.mu.Lock()
	snapshot := a.pending
	a.pending = make(map[shared.RoomID]map[shared.UserID]stats.Metrics)
	a.mu.Unlock()

	endTime := a.now()
	events := make([]stats.RawStatEvent, 0, len(snapshot))
	for room, byUser := range snapshot {
		for user, m := range byUser {
			if m.IsZero() {
				continue
			}
			events = append(events, stats.NewRawStatEvent(room, user, endTime, m))
		}
	}

	if len(events) == 0 {
		return 0, nil
	}

	if err := a.log.AppendBatch(ctx, events); err != nil {
		a.restore(snapshot)
		metrics.FlushFailures.Inc()
		return 0, fmt.Errorf("failed to append stat events: %w", err)
	}

	metrics.EventsFlushed.Add(float64(len(events)))
	a.lg.Debug("stats flushed", logger.Int("events", len(events)))
	return len(events), nil
}

// Drain performs a final flush on shutdown so pending counters are not lost.
func (a *Accumulator) Drain(ctx context.Context) error {
	n, err := a.Flush(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.lg.Info("accumulator drained", logger.Int("events", n))
	}
	return nil
}

// restore merges a failed snapshot back into the pending table.
func (a *Accumulator) restore(snapshot map[shared.RoomID]map[shared.UserID]stats.Metrics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for room, byUser := range snapshot {
		dst, ok := a.pending[room]
		if !ok {
			a.pending[room] = byUser
			continue
		}
		for user, m := range byUser {
			if cur, ok := dst[user]; ok {
				cur.Add(m)
			} else {
				dst[user] = m
			}
		}
	}
}
