package command

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET SEASON COMMAND
// Полный сброс рейтингов: удаляет строки всех режимов за все сезоны.
// Указатель активного сезона и реестр сезонов не трогаются - следующий
// проход консолидации начнёт накопление заново с нуля.
// ══════════════════════════════════════════════════════════════════════════════

// ResetSeasonHandler handles the administrative leaderboard reset.
type ResetSeasonHandler struct {
	entries leaderboard.EntryRepository
	seasons leaderboard.SeasonRepository
	cache   leaderboard.Cache
}

// NewResetSeasonHandler creates a new ResetSeasonHandler.
func NewResetSeasonHandler(entries leaderboard.EntryRepository, seasons leaderboard.SeasonRepository, cache leaderboard.Cache) *ResetSeasonHandler {
	return &ResetSeasonHandler{entries: entries, seasons: seasons, cache: cache}
}

// Handle wipes all leaderboard rows and drops the cached pages.
func (h *ResetSeasonHandler) Handle(ctx context.Context) error {
	if err := h.entries.WipeAll(ctx); err != nil {
		return fmt.Errorf("reset_season: failed to wipe entries: %w", err)
	}

	// Cache invalidation is best effort: stale pages expire by TTL anyway.
	if h.cache != nil {
		seasons, err := h.seasons.List(ctx)
		if err != nil {
			return nil
		}
		for _, season := range seasons {
			for _, mode := range leaderboard.AllModes() {
				_ = h.cache.Invalidate(ctx, mode, season.ID)
			}
		}
	}

	return nil
}
