// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
	"github.com/NhanHo/screepsmod-stats/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Возвращает страницу рейтинга режима за сезон по возрастанию ранга.
// Страницы кэшируются в Redis за circuit breaker'ом: открытый breaker или
// любая ошибка кэша означают чтение напрямую из Postgres.
// ══════════════════════════════════════════════════════════════════════════════

// MaxLeaderboardLimit - верхняя граница размера страницы.
const MaxLeaderboardLimit = 20

// leaderboardCacheTTL ограничивает жизнь закэшированной страницы. Проход
// консолидации инвалидирует страницы явно, но инвалидация best effort;
// TTL гарантирует, что пропущенная инвалидация не оставит страницу
// устаревшей навсегда.
const leaderboardCacheTTL = 2 * time.Minute

// GetLeaderboardQuery содержит параметры запроса рейтинга.
type GetLeaderboardQuery struct {
	// Mode - режим рейтинга ("world" или "power").
	Mode string

	// Season - сезон "YYYY-MM"; пустая строка означает активный сезон.
	Season string

	// Limit - размер страницы, 1..20.
	Limit int

	// Offset - смещение страницы, от нуля.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q GetLeaderboardQuery) Validate() error {
	if !leaderboard.ScoringMode(q.Mode).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrUnknownMode, q.Mode)
	}
	if q.Limit < 1 || q.Limit > MaxLeaderboardLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", shared.ErrInvalidParams, MaxLeaderboardLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset cannot be negative", shared.ErrInvalidParams)
	}
	if q.Season != "" && !leaderboard.SeasonID(q.Season).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidSeasonID, q.Season)
	}
	return nil
}

// LeaderboardRowDTO - одна строка ответа с отображаемыми данными игрока.
type LeaderboardRowDTO struct {
	// UserID - внутренний идентификатор игрока.
	UserID string `json:"user_id"`

	// Username - отображаемое имя (пустое, если игрок неизвестен миру).
	Username string `json:"username,omitempty"`

	// Badge - значок игрока, отдаётся клиенту как есть.
	Badge json.RawMessage `json:"badge,omitempty"`

	// Score - накопленный счёт за сезон.
	Score int64 `json:"score"`

	// Rank - плотный ранг от нуля.
	Rank int `json:"rank"`
}

// GetLeaderboardResult содержит страницу рейтинга.
type GetLeaderboardResult struct {
	// Mode - режим, по которому строилась страница.
	Mode string `json:"mode"`

	// Season - сезон, по которому строилась страница.
	Season string `json:"season"`

	// Rows - строки страницы по возрастанию ранга.
	Rows []LeaderboardRowDTO `json:"list"`

	// Total - общее число строк режима за сезон.
	Total int `json:"count"`
}

// GetLeaderboardHandler обрабатывает запросы страницы рейтинга.
type GetLeaderboardHandler struct {
	entries     leaderboard.EntryRepository
	seasonState leaderboard.SeasonState
	cache       leaderboard.Cache
	worldRepo   world.Repository
	breaker     *circuitbreaker.CircuitBreaker
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса рейтинга.
func NewGetLeaderboardHandler(
	entries leaderboard.EntryRepository,
	seasonState leaderboard.SeasonState,
	cache leaderboard.Cache,
	worldRepo world.Repository,
	breaker *circuitbreaker.CircuitBreaker,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		entries:     entries,
		seasonState: seasonState,
		cache:       cache,
		worldRepo:   worldRepo,
		breaker:     breaker,
	}
}

// Handle выполняет запрос страницы рейтинга.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	mode := leaderboard.ScoringMode(q.Mode)

	season := leaderboard.SeasonID(q.Season)
	if season == "" {
		active, err := h.seasonState.Active(ctx)
		if err != nil {
			return nil, fmt.Errorf("get_leaderboard: %w", err)
		}
		season = active
	}

	page, cached := h.tryCache(ctx, mode, season, q.Limit, q.Offset)
	if !cached {
		var err error
		page, err = h.entries.ListPage(ctx, mode, season, q.Limit, q.Offset)
		if err != nil {
			return nil, fmt.Errorf("get_leaderboard: failed to list page: %w", err)
		}
		h.storeCache(ctx, mode, season, q.Limit, q.Offset, page)
	}

	rows, err := h.resolveRows(ctx, page.Entries)
	if err != nil {
		return nil, err
	}

	return &GetLeaderboardResult{
		Mode:   mode.String(),
		Season: season.String(),
		Rows:   rows,
		Total:  page.Total,
	}, nil
}

// tryCache читает страницу через circuit breaker. Любая ошибка
// (включая открытый breaker) трактуется как промах.
func (h *GetLeaderboardHandler) tryCache(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int) (leaderboard.Page, bool) {
	if h.cache == nil || h.breaker == nil {
		return leaderboard.Page{}, false
	}

	var page leaderboard.Page
	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		page, err = h.cache.GetTop(ctx, mode, season, limit, offset)
		return err
	})
	if err != nil {
		return leaderboard.Page{}, false
	}
	return page, true
}

// storeCache записывает страницу обратно в кэш, best effort.
func (h *GetLeaderboardHandler) storeCache(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int, page leaderboard.Page) {
	if h.cache == nil || h.breaker == nil {
		return
	}
	_ = h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.cache.SetTop(ctx, mode, season, limit, offset, page, leaderboardCacheTTL)
	})
}

// resolveRows обогащает строки отображаемыми данными из модели мира.
func (h *GetLeaderboardHandler) resolveRows(ctx context.Context, entries []leaderboard.Entry) ([]LeaderboardRowDTO, error) {
	var infos map[shared.UserID]world.UserInfo
	if h.worldRepo != nil && len(entries) > 0 {
		users := make([]shared.UserID, len(entries))
		for i, e := range entries {
			users[i] = e.User
		}
		var err error
		infos, err = h.worldRepo.FindUsers(ctx, users)
		if err != nil {
			return nil, fmt.Errorf("get_leaderboard: failed to resolve users: %w", err)
		}
	}

	rows := make([]LeaderboardRowDTO, len(entries))
	for i, e := range entries {
		row := LeaderboardRowDTO{
			UserID: e.User.String(),
			Score:  e.Score,
			Rank:   e.Rank,
		}
		if info, ok := infos[e.User]; ok {
			row.Username = info.Username
			row.Badge = info.Badge
		}
		rows[i] = row
	}
	return rows, nil
}
