package query

import (
	"context"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Суммирует метрики игрока по всем комнатам в скользящем окне одной
// гранулярности: от WindowStart(now) до корзины текущего момента.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsQuery содержит параметры запроса статистики игрока.
type GetUserStatsQuery struct {
	// User - идентификатор игрока.
	User string

	// Interval - ширина корзины в минутах (8, 180 или 1440).
	Interval int
}

// Validate проверяет корректность параметров запроса.
func (q GetUserStatsQuery) Validate() error {
	if !shared.UserID(q.User).IsValid() {
		return fmt.Errorf("%w: empty user id", shared.ErrInvalidUser)
	}
	if q.Interval <= 0 {
		return fmt.Errorf("%w: %d", shared.ErrUnknownGranularity, q.Interval)
	}
	return nil
}

// GetUserStatsResult содержит суммы метрик игрока за окно.
type GetUserStatsResult struct {
	User     string `json:"user_id"`
	Interval int    `json:"interval"`

	// Totals - сумма каждой метрики по всем комнатам игрока в окне.
	// Метрики без накоплений присутствуют с нулём.
	Totals map[string]int64 `json:"stats"`
}

// GetUserStatsHandler обрабатывает запрос статистики игрока.
type GetUserStatsHandler struct {
	buckets  stats.BucketRepository
	registry *stats.Registry
	now      func() time.Time
}

// NewGetUserStatsHandler создаёт новый обработчик статистики игрока.
func NewGetUserStatsHandler(buckets stats.BucketRepository, registry *stats.Registry) *GetUserStatsHandler {
	return &GetUserStatsHandler{
		buckets:  buckets,
		registry: registry,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (h *GetUserStatsHandler) WithClock(now func() time.Time) *GetUserStatsHandler {
	h.now = now
	return h
}

// Handle выполняет запрос статистики игрока.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*GetUserStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	g, ok := h.registry.ByMinutes(q.Interval)
	if !ok {
		return nil, fmt.Errorf("%w: %d", shared.ErrUnknownGranularity, q.Interval)
	}

	now := h.now()
	from, to := g.WindowStart(now), g.BucketIndex(now)

	sums, err := h.buckets.SumUserWindow(ctx, g, shared.UserID(q.User), from, to)
	if err != nil {
		return nil, fmt.Errorf("get_user_stats: %w", err)
	}

	totals := make(map[string]int64, len(stats.AllMetrics()))
	for _, name := range stats.AllMetrics() {
		totals[name.String()] = sums[name]
	}

	return &GetUserStatsResult{
		User:     q.User,
		Interval: g.Minutes(),
		Totals:   totals,
	}, nil
}
