// Package jobs contains implementations of the stats engine's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSOLIDATE STATS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Lock is the cross-process single-flight guard the job acquires before a
// pass. The Redis implementation lives in the persistence layer; tests use
// an in-memory fake.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ConsolidateStatsJob drains the raw event log into the bucket tables, the
// max records and the seasonal leaderboards, then prunes the consumed
// events.
//
// Invariants the pass maintains:
//   - The consumption boundary is captured before any work: only events
//     with endTime at or before it are pruned, so events arriving mid-pass
//     survive to the next one.
//   - Each granularity and each scoring mode is an independent unit. A
//     failed unit is logged and counted, the rest of the pass continues.
//   - Pruning happens only when every unit succeeded. A partial pass keeps
//     the log intact and replays it next time; bucket sums may then count
//     the replayed events twice. That trade-off keeps the pass free of
//     cross-table transactions.
type ConsolidateStatsJob struct {
	// Dependencies
	rawEvents   stats.RawEventRepository
	buckets     stats.BucketRepository
	records     stats.MaxRecordRepository
	entries     leaderboard.EntryRepository
	seasonState leaderboard.SeasonState
	cache       leaderboard.Cache
	registry    *stats.Registry
	lock        Lock
	logger      *slog.Logger

	// Configuration
	config ConsolidateStatsConfig

	// State
	inFlight  atomic.Bool
	lastStats atomic.Value // *ConsolidationStats
}

// ConsolidateStatsConfig contains configuration for the consolidation job.
type ConsolidateStatsConfig struct {
	// Timeout bounds one pass.
	Timeout time.Duration
}

// DefaultConsolidateStatsConfig returns sensible defaults.
func DefaultConsolidateStatsConfig() ConsolidateStatsConfig {
	return ConsolidateStatsConfig{
		Timeout: 2 * time.Minute,
	}
}

// ConsolidationStats contains statistics from one pass.
type ConsolidationStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	EventsLoaded  int
	EventsPruned  int64
	FailedUnits   int
	Pruned        bool
}

// NewConsolidateStatsJob creates a new consolidation job.
func NewConsolidateStatsJob(
	rawEvents stats.RawEventRepository,
	buckets stats.BucketRepository,
	records stats.MaxRecordRepository,
	entries leaderboard.EntryRepository,
	seasonState leaderboard.SeasonState,
	cache leaderboard.Cache,
	registry *stats.Registry,
	lock Lock,
	logger *slog.Logger,
	config ConsolidateStatsConfig,
) *ConsolidateStatsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConsolidateStatsJob{
		rawEvents:   rawEvents,
		buckets:     buckets,
		records:     records,
		entries:     entries,
		seasonState: seasonState,
		cache:       cache,
		registry:    registry,
		lock:        lock,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *ConsolidateStatsJob) Name() string {
	return "consolidate_stats"
}

// Description returns a human-readable description.
func (j *ConsolidateStatsJob) Description() string {
	return "Merges raw stat events into bucket tables, max records and leaderboards, then prunes the log"
}

// LastStats returns statistics from the most recent pass, or nil.
func (j *ConsolidateStatsJob) LastStats() *ConsolidationStats {
	v, _ := j.lastStats.Load().(*ConsolidationStats)
	return v
}

// Run executes one consolidation pass.
func (j *ConsolidateStatsJob) Run(ctx context.Context) error {
	// In-process single flight: a pass that outlives its schedule slot
	// must not be joined by the next tick.
	if !j.inFlight.CompareAndSwap(false, true) {
		j.logger.Info("consolidation already in flight, skipping")
		metrics.ConsolidationRuns.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}
	defer j.inFlight.Store(false)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// Cross-process single flight.
	if j.lock != nil {
		ok, err := j.lock.TryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire consolidation lock: %w", err)
		}
		if !ok {
			j.logger.Info("consolidation lock held elsewhere, skipping")
			metrics.ConsolidationRuns.WithLabelValues(metrics.OutcomeSkipped).Inc()
			return nil
		}
		defer func() {
			if err := j.lock.Release(ctx); err != nil {
				j.logger.Warn("failed to release consolidation lock", "error", err)
			}
		}()
	}

	startedAt := time.Now()
	runStats := &ConsolidationStats{StartedAt: startedAt}

	// The consumption boundary: everything consumed by this pass was in
	// the log before this instant.
	queryTime := time.Now()

	events, err := j.rawEvents.ListAll(ctx)
	if err != nil {
		metrics.ConsolidationRuns.WithLabelValues(metrics.OutcomePartial).Inc()
		return fmt.Errorf("failed to load raw events: %w", err)
	}
	runStats.EventsLoaded = len(events)

	if len(events) == 0 {
		j.finish(runStats, startedAt, metrics.OutcomeSuccess)
		return nil
	}

	j.logger.Info("starting consolidation pass", "events", len(events))

	failed := j.runUnits(ctx, events)
	runStats.FailedUnits = failed

	if failed == 0 {
		pruned, err := j.rawEvents.PruneThrough(ctx, queryTime)
		if err != nil {
			j.logger.Error("failed to prune raw events", "error", err)
			j.finish(runStats, startedAt, metrics.OutcomePartial)
			return fmt.Errorf("failed to prune raw events: %w", err)
		}
		runStats.EventsPruned = pruned
		runStats.Pruned = true
		metrics.EventsConsolidated.Add(float64(pruned))

		j.finish(runStats, startedAt, metrics.OutcomeSuccess)
		j.logger.Info("consolidation pass completed",
			"events", len(events),
			"pruned", pruned,
			"duration", runStats.Duration.String(),
		)
		return nil
	}

	// Log kept intact for replay.
	j.finish(runStats, startedAt, metrics.OutcomePartial)
	j.logger.Warn("consolidation pass completed with failed units",
		"events", len(events),
		"failed_units", failed,
	)
	return fmt.Errorf("consolidation completed with %d failed units", failed)
}

// finish records pass statistics and metrics.
func (j *ConsolidateStatsJob) finish(runStats *ConsolidationStats, startedAt time.Time, outcome string) {
	runStats.CompletedAt = time.Now()
	runStats.Duration = runStats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(runStats)

	metrics.ConsolidationRuns.WithLabelValues(outcome).Inc()
	metrics.ConsolidationDuration.Observe(runStats.Duration.Seconds())
}

// runUnits fans the pass out over the independent units: one merge unit
// per granularity plus the leaderboard ranking unit. Returns the number
// of failed units.
func (j *ConsolidateStatsJob) runUnits(ctx context.Context, events []stats.RawStatEvent) int {
	granularities := j.registry.All()

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)

	for _, g := range granularities {
		wg.Add(1)
		go func(g stats.Granularity) {
			defer wg.Done()
			if err := j.consolidateGranularity(ctx, g, events); err != nil {
				failed.Add(1)
				metrics.GranularityFailures.WithLabelValues(g.Code()).Inc()
				j.logger.Error("granularity merge failed",
					"interval", g.Code(),
					"error", err,
				)
			}
		}(g)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := j.updateLeaderboards(ctx, events); err != nil {
			failed.Add(1)
			j.logger.Error("leaderboard update failed", "error", err)
		}
	}()

	wg.Wait()
	return int(failed.Load())
}

// consolidateGranularity merges the event batch into one granularity's
// buckets and raises its max records.
func (j *ConsolidateStatsJob) consolidateGranularity(ctx context.Context, g stats.Granularity, events []stats.RawStatEvent) error {
	groups := stats.GroupByBucket(g, events)
	if len(groups) == 0 {
		return nil
	}

	keys := make([]stats.BucketKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}

	existing, err := j.buckets.FindByKeys(ctx, g, keys)
	if err != nil {
		return fmt.Errorf("failed to load existing buckets: %w", err)
	}

	plan := stats.BuildMergePlan(g, groups, existing)
	if err := j.buckets.ApplyMergePlan(ctx, g, plan); err != nil {
		return fmt.Errorf("failed to apply merge plan: %w", err)
	}

	// Records are raised from the post-merge sums, so a bucket's record
	// reflects its lifetime maximum, not the size of one batch.
	merged := append(append([]stats.Bucket{}, plan.Inserts...), plan.Updates...)
	records := stats.MaxByBucket(g, merged)
	if err := j.records.RaiseMaxima(ctx, records); err != nil {
		return fmt.Errorf("failed to raise max records: %w", err)
	}

	return nil
}

// updateLeaderboards folds the event batch into the active season's
// standings, one scoring mode at a time. No active season is a normal
// state: accumulation is skipped without error.
func (j *ConsolidateStatsJob) updateLeaderboards(ctx context.Context, events []stats.RawStatEvent) error {
	season, err := j.seasonState.Active(ctx)
	if errors.Is(err, shared.ErrNoActiveSeason) {
		j.logger.Debug("no active season, skipping leaderboard update")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve active season: %w", err)
	}

	var firstErr error
	for _, mode := range leaderboard.AllModes() {
		if err := j.updateMode(ctx, mode, season, events); err != nil {
			metrics.RankerFailures.WithLabelValues(mode.String()).Inc()
			j.logger.Error("mode ranking failed",
				"mode", mode.String(),
				"season", season.String(),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// updateMode recomputes one mode's standings from the batch deltas.
func (j *ConsolidateStatsJob) updateMode(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, events []stats.RawStatEvent) error {
	deltas := leaderboard.DeltasFromEvents(mode, events)
	if len(deltas) == 0 {
		return nil
	}

	current, err := j.entries.ListSeason(ctx, mode, season)
	if err != nil {
		return fmt.Errorf("failed to load standings: %w", err)
	}

	standings := leaderboard.LoadStandings(mode, season, current)
	standings.ApplyDeltas(deltas)
	standings.Rank()

	plan := standings.Diff()
	if plan.IsEmpty() {
		return nil
	}

	if err := j.entries.ApplyWritePlan(ctx, mode, plan); err != nil {
		return fmt.Errorf("failed to write standings: %w", err)
	}

	// Cache invalidation is best effort; the TTL covers a miss here.
	if j.cache != nil {
		if err := j.cache.Invalidate(ctx, mode, season); err != nil {
			j.logger.Warn("failed to invalidate leaderboard cache",
				"mode", mode.String(),
				"error", err,
			)
		}
	}

	return nil
}
