package query

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND LEADERBOARD ENTRY QUERY
// Возвращает позиции одного игрока в режиме: за конкретный сезон или за
// все сезоны, где у игрока есть строка.
// ══════════════════════════════════════════════════════════════════════════════

// FindLeaderboardEntryQuery содержит параметры поиска позиции игрока.
type FindLeaderboardEntryQuery struct {
	// Mode - режим рейтинга ("world" или "power").
	Mode string

	// User - идентификатор игрока.
	User string

	// Season - сезон "YYYY-MM"; пустая строка означает все сезоны.
	Season string
}

// Validate проверяет корректность параметров запроса.
func (q FindLeaderboardEntryQuery) Validate() error {
	if !leaderboard.ScoringMode(q.Mode).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrUnknownMode, q.Mode)
	}
	if !shared.UserID(q.User).IsValid() {
		return fmt.Errorf("%w: empty user id", shared.ErrInvalidUser)
	}
	if q.Season != "" && !leaderboard.SeasonID(q.Season).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidSeasonID, q.Season)
	}
	return nil
}

// LeaderboardPositionDTO - позиция игрока в одном сезоне.
type LeaderboardPositionDTO struct {
	Season string `json:"season"`
	Score  int64  `json:"score"`
	Rank   int    `json:"rank"`
}

// FindLeaderboardEntryResult содержит найденные позиции игрока.
type FindLeaderboardEntryResult struct {
	Mode string `json:"mode"`
	User string `json:"user_id"`

	// Positions - позиции по сезонам; один элемент при запросе конкретного
	// сезона, по элементу на сезон при запросе всех.
	Positions []LeaderboardPositionDTO `json:"positions"`
}

// FindLeaderboardEntryHandler обрабатывает поиск позиции игрока.
type FindLeaderboardEntryHandler struct {
	entries leaderboard.EntryRepository
}

// NewFindLeaderboardEntryHandler создаёт новый обработчик поиска.
func NewFindLeaderboardEntryHandler(entries leaderboard.EntryRepository) *FindLeaderboardEntryHandler {
	return &FindLeaderboardEntryHandler{entries: entries}
}

// Handle выполняет поиск позиции игрока.
func (h *FindLeaderboardEntryHandler) Handle(ctx context.Context, q FindLeaderboardEntryQuery) (*FindLeaderboardEntryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	mode := leaderboard.ScoringMode(q.Mode)
	user := shared.UserID(q.User)

	var found []leaderboard.Entry
	if q.Season != "" {
		entry, err := h.entries.Find(ctx, mode, leaderboard.SeasonID(q.Season), user)
		if err != nil {
			return nil, fmt.Errorf("find_leaderboard_entry: %w", err)
		}
		found = []leaderboard.Entry{entry}
	} else {
		var err error
		found, err = h.entries.FindAllSeasons(ctx, mode, user)
		if err != nil {
			return nil, fmt.Errorf("find_leaderboard_entry: %w", err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("find_leaderboard_entry: %w", shared.ErrEntryNotFound)
		}
	}

	positions := make([]LeaderboardPositionDTO, len(found))
	for i, e := range found {
		positions[i] = LeaderboardPositionDTO{
			Season: e.Season.String(),
			Score:  e.Score,
			Rank:   e.Rank,
		}
	}

	return &FindLeaderboardEntryResult{
		Mode:      mode.String(),
		User:      user.String(),
		Positions: positions,
	}, nil
}
