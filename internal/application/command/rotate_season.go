package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROTATE SEASON COMMAND
// Создаёт сезон текущего месяца (если его ещё нет) и переводит на него
// указатель активного сезона. Сезон выводится из календаря, поэтому
// повторный вызов в том же месяце ничего не меняет.
// ══════════════════════════════════════════════════════════════════════════════

// RotateSeasonCommand содержит параметры ротации.
type RotateSeasonCommand struct {
	// At - момент времени, определяющий месяц сезона.
	// Нулевое значение означает "сейчас".
	At time.Time
}

// RotateSeasonResult contains the rotation outcome.
type RotateSeasonResult struct {
	Season    leaderboard.Season
	Created   bool
	Activated bool
}

// RotateSeasonHandler handles RotateSeasonCommand.
type RotateSeasonHandler struct {
	seasons     leaderboard.SeasonRepository
	seasonState leaderboard.SeasonState
}

// NewRotateSeasonHandler creates a new RotateSeasonHandler.
func NewRotateSeasonHandler(seasons leaderboard.SeasonRepository, seasonState leaderboard.SeasonState) *RotateSeasonHandler {
	return &RotateSeasonHandler{seasons: seasons, seasonState: seasonState}
}

// Handle executes the rotation.
func (h *RotateSeasonHandler) Handle(ctx context.Context, cmd RotateSeasonCommand) (*RotateSeasonResult, error) {
	at := cmd.At
	if at.IsZero() {
		at = time.Now()
	}

	season := leaderboard.SeasonForTime(at)
	result := &RotateSeasonResult{Season: season}

	err := h.seasons.Insert(ctx, season)
	switch {
	case errors.Is(err, shared.ErrAlreadyExists):
		// Already created by an earlier rotation this month.
	case err != nil:
		return nil, fmt.Errorf("rotate_season: failed to create season: %w", err)
	default:
		result.Created = true
	}

	current, err := h.seasonState.Active(ctx)
	if err != nil && !errors.Is(err, shared.ErrNoActiveSeason) {
		return nil, fmt.Errorf("rotate_season: failed to read active season: %w", err)
	}
	if err != nil || current != season.ID {
		if err := h.seasonState.SetActive(ctx, season.ID); err != nil {
			return nil, fmt.Errorf("rotate_season: failed to activate season: %w", err)
		}
		result.Activated = true
	}

	return result, nil
}
