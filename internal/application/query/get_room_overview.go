package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROOM OVERVIEW QUERY
// Собирает сводку комнаты: владельца контроллера, ряды его метрик по
// корзинам скользящего окна одной гранулярности и рекорды окна.
// ══════════════════════════════════════════════════════════════════════════════

// GetRoomOverviewQuery содержит параметры запроса сводки комнаты.
type GetRoomOverviewQuery struct {
	// Room - имя комнаты ("W12N34").
	Room string

	// Interval - ширина корзины в минутах (8, 180 или 1440).
	Interval int
}

// Validate проверяет корректность параметров запроса.
func (q GetRoomOverviewQuery) Validate() error {
	if !shared.RoomID(q.Room).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidRoom, q.Room)
	}
	if q.Interval <= 0 {
		return fmt.Errorf("%w: %d", shared.ErrUnknownGranularity, q.Interval)
	}
	return nil
}

// RoomOwnerDTO - отображаемые данные владельца комнаты.
type RoomOwnerDTO struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username,omitempty"`
	Badge    json.RawMessage `json:"badge,omitempty"`
	Level    int             `json:"level"`
}

// StatPointDTO - одна точка ряда: конец корзины и значение.
type StatPointDTO struct {
	EndTime int64 `json:"endTime"`
	Value   int64 `json:"value"`
}

// GetRoomOverviewResult содержит сводку комнаты.
type GetRoomOverviewResult struct {
	Room     string `json:"room"`
	Interval int    `json:"interval"`

	// Owner - владелец контроллера (nil, если комната ничья).
	Owner *RoomOwnerDTO `json:"owner,omitempty"`

	// Series - ряд каждой метрики владельца по корзинам окна, от старшей
	// корзины к текущей. Корзины без накоплений присутствуют с нулём.
	// Пустая карта, если комната ничья.
	Series map[string][]StatPointDTO `json:"stats"`

	// Maxima - максимум каждой метрики среди рекордов корзин окна.
	Maxima map[string]int64 `json:"statsMax"`
}

// GetRoomOverviewHandler обрабатывает запрос сводки комнаты.
type GetRoomOverviewHandler struct {
	worldRepo world.Repository
	buckets   stats.BucketRepository
	records   stats.MaxRecordRepository
	registry  *stats.Registry
	now       func() time.Time
}

// NewGetRoomOverviewHandler создаёт новый обработчик сводки комнаты.
func NewGetRoomOverviewHandler(
	worldRepo world.Repository,
	buckets stats.BucketRepository,
	records stats.MaxRecordRepository,
	registry *stats.Registry,
) *GetRoomOverviewHandler {
	return &GetRoomOverviewHandler{
		worldRepo: worldRepo,
		buckets:   buckets,
		records:   records,
		registry:  registry,
		now:       time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (h *GetRoomOverviewHandler) WithClock(now func() time.Time) *GetRoomOverviewHandler {
	h.now = now
	return h
}

// Handle выполняет запрос сводки комнаты.
func (h *GetRoomOverviewHandler) Handle(ctx context.Context, q GetRoomOverviewQuery) (*GetRoomOverviewResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	g, ok := h.registry.ByMinutes(q.Interval)
	if !ok {
		return nil, fmt.Errorf("%w: %d", shared.ErrUnknownGranularity, q.Interval)
	}

	room := shared.RoomID(q.Room)
	state, err := h.worldRepo.FindRoom(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("get_room_overview: %w", err)
	}

	now := h.now()
	from, to := g.WindowStart(now), g.BucketIndex(now)

	result := &GetRoomOverviewResult{
		Room:     q.Room,
		Interval: g.Minutes(),
		Series:   map[string][]StatPointDTO{},
		Maxima:   map[string]int64{},
	}

	if state.IsOwned() {
		owner, err := h.resolveOwner(ctx, state)
		if err != nil {
			return nil, err
		}
		result.Owner = owner

		series, err := h.buckets.UserRoomSeries(ctx, g, room, state.Owner, from, to)
		if err != nil {
			return nil, fmt.Errorf("get_room_overview: failed to load series: %w", err)
		}
		result.Series = buildSeries(g, series, from, to)
	}

	maxRecords, err := h.records.ListWindow(ctx, g, from, to)
	if err != nil {
		return nil, fmt.Errorf("get_room_overview: failed to load records: %w", err)
	}
	for _, name := range stats.AllMetrics() {
		var peak int64
		for _, rec := range maxRecords {
			if v := rec.Metrics[name]; v > peak {
				peak = v
			}
		}
		result.Maxima[name.String()] = peak
	}

	return result, nil
}

// resolveOwner обогащает владельца отображаемыми данными.
func (h *GetRoomOverviewHandler) resolveOwner(ctx context.Context, state world.RoomState) (*RoomOwnerDTO, error) {
	owner := &RoomOwnerDTO{
		UserID: state.Owner.String(),
		Level:  state.Level,
	}
	infos, err := h.worldRepo.FindUsers(ctx, []shared.UserID{state.Owner})
	if err != nil {
		if errors.Is(err, shared.ErrUserNotFound) {
			return owner, nil
		}
		return nil, fmt.Errorf("get_room_overview: failed to resolve owner: %w", err)
	}
	if info, ok := infos[state.Owner]; ok {
		owner.Username = info.Username
		owner.Badge = info.Badge
	}
	return owner, nil
}

// buildSeries разворачивает карту корзин в плотные ряды по метрикам:
// каждая корзина окна присутствует, пропуски заполняются нулями.
func buildSeries(g stats.Granularity, byIndex map[int64]stats.Metrics, from, to int64) map[string][]StatPointDTO {
	out := make(map[string][]StatPointDTO, len(stats.AllMetrics()))
	for _, name := range stats.AllMetrics() {
		points := make([]StatPointDTO, 0, to-from+1)
		for idx := from; idx <= to; idx++ {
			point := StatPointDTO{EndTime: (idx + 1) * g.Interval.Milliseconds()}
			if m, ok := byIndex[idx]; ok {
				point.Value = m[name]
			}
			points = append(points, point)
		}
		out[name.String()] = points
	}
	return out
}
