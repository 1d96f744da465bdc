package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/collector"
	"github.com/NhanHo/screepsmod-stats/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLUSH STATS JOB
// ══════════════════════════════════════════════════════════════════════════════

// FlushStatsJob drains the in-memory accumulator into the raw event log.
// It runs far more often than consolidation so a crash loses at most a few
// seconds of counters.
type FlushStatsJob struct {
	accumulator *collector.Accumulator
	retrier     *retry.Retrier
	logger      *slog.Logger
}

// NewFlushStatsJob creates a new flush job.
func NewFlushStatsJob(accumulator *collector.Accumulator, logger *slog.Logger) *FlushStatsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlushStatsJob{
		accumulator: accumulator,
		retrier:     retry.DatabaseRetrier(),
		logger:      logger,
	}
}

// Name returns the job name.
func (j *FlushStatsJob) Name() string {
	return "flush_stats"
}

// Description returns a human-readable description.
func (j *FlushStatsJob) Description() string {
	return "Flushes accumulated in-memory counters into the raw event log"
}

// Run executes one flush. A failed append restores the counters into the
// accumulator, so retrying within the same run is safe; counters that
// still cannot be written wait in memory for the next tick.
func (j *FlushStatsJob) Run(ctx context.Context) error {
	var flushed int
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var flushErr error
		flushed, flushErr = j.accumulator.Flush(ctx)
		if flushErr != nil {
			return retry.Retryable(flushErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to flush accumulator: %w", err)
	}
	if flushed > 0 {
		j.logger.Debug("accumulator flushed", "events", flushed, "at", time.Now().UTC().Format(time.RFC3339))
	}
	return nil
}
