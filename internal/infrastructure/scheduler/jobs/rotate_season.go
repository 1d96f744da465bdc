package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROTATE SEASON JOB
// ══════════════════════════════════════════════════════════════════════════════

// RotateSeasonJob makes sure a season exists for the current calendar month
// and points the active season pointer at it. The season is derived from
// the clock, so running the job twice in one month is a no-op.
type RotateSeasonJob struct {
	seasons     leaderboard.SeasonRepository
	seasonState leaderboard.SeasonState
	logger      *slog.Logger

	// now is injected in tests.
	now func() time.Time
}

// NewRotateSeasonJob creates a new season rotation job.
func NewRotateSeasonJob(seasons leaderboard.SeasonRepository, seasonState leaderboard.SeasonState, logger *slog.Logger) *RotateSeasonJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RotateSeasonJob{
		seasons:     seasons,
		seasonState: seasonState,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the job's clock. Test hook.
func (j *RotateSeasonJob) WithClock(now func() time.Time) *RotateSeasonJob {
	j.now = now
	return j
}

// Name returns the job name.
func (j *RotateSeasonJob) Name() string {
	return "rotate_season"
}

// Description returns a human-readable description.
func (j *RotateSeasonJob) Description() string {
	return "Creates the season for the current month and activates it"
}

// Run executes one rotation check.
func (j *RotateSeasonJob) Run(ctx context.Context) error {
	season := leaderboard.SeasonForTime(j.now())

	err := j.seasons.Insert(ctx, season)
	switch {
	case errors.Is(err, shared.ErrAlreadyExists):
		// Same month, nothing to create.
	case err != nil:
		return fmt.Errorf("failed to create season %s: %w", season.ID, err)
	default:
		j.logger.Info("season created",
			"season", season.ID.String(),
			"name", season.Name,
		)
	}

	current, err := j.seasonState.Active(ctx)
	if err == nil && current == season.ID {
		return nil
	}
	if err != nil && !errors.Is(err, shared.ErrNoActiveSeason) {
		return fmt.Errorf("failed to read active season: %w", err)
	}

	if err := j.seasonState.SetActive(ctx, season.ID); err != nil {
		return fmt.Errorf("failed to activate season %s: %w", season.ID, err)
	}

	j.logger.Info("active season moved", "season", season.ID.String())
	return nil
}
