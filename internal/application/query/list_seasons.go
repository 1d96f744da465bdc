package query

import (
	"context"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SEASONS QUERY
// Возвращает все сезоны по возрастанию даты. Если сезон ровно один,
// список дополняется синтетическим сезоном следующего месяца: клиенты
// переключателя сезонов рассчитывают минимум на два элемента.
// ══════════════════════════════════════════════════════════════════════════════

// SeasonDTO - один сезон в ответе.
type SeasonDTO struct {
	ID   string    `json:"_id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// ListSeasonsResult содержит список сезонов.
type ListSeasonsResult struct {
	Seasons []SeasonDTO `json:"seasons"`
}

// ListSeasonsHandler обрабатывает запрос списка сезонов.
type ListSeasonsHandler struct {
	seasons leaderboard.SeasonRepository
}

// NewListSeasonsHandler создаёт новый обработчик списка сезонов.
func NewListSeasonsHandler(seasons leaderboard.SeasonRepository) *ListSeasonsHandler {
	return &ListSeasonsHandler{seasons: seasons}
}

// Handle выполняет запрос списка сезонов.
func (h *ListSeasonsHandler) Handle(ctx context.Context) (*ListSeasonsResult, error) {
	seasons, err := h.seasons.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_seasons: %w", err)
	}

	if len(seasons) == 1 {
		seasons = append(seasons, nextSeasonAfter(seasons[0]))
	}

	out := make([]SeasonDTO, len(seasons))
	for i, s := range seasons {
		out[i] = SeasonDTO{
			ID:   s.ID.String(),
			Name: s.Name,
			Date: s.Date,
		}
	}
	return &ListSeasonsResult{Seasons: out}, nil
}

// nextSeasonAfter строит синтетический сезон месяца, следующего за данным.
// Такой строки может не быть в хранилище; она существует только в ответе.
func nextSeasonAfter(s leaderboard.Season) leaderboard.Season {
	base, err := time.Parse("2006-01", s.ID.String())
	if err != nil {
		base = s.Date.UTC()
	}
	return leaderboard.SeasonForTime(timeutil.NextMonth(base))
}
