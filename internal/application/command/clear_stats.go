package command

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR STATS COMMAND
// Административный сброс статистики: очищает журнал сырых событий, все
// таблицы корзин и записи рекордов. Рейтинги не трогаются - для них есть
// отдельный ResetSeason.
// ══════════════════════════════════════════════════════════════════════════════

// ClearStatsResult contains per-store outcomes of the wipe.
type ClearStatsResult struct {
	GranularitiesCleared int
}

// ClearStatsHandler handles the administrative stats wipe.
type ClearStatsHandler struct {
	rawEvents stats.RawEventRepository
	buckets   stats.BucketRepository
	records   stats.MaxRecordRepository
	registry  *stats.Registry
}

// NewClearStatsHandler creates a new ClearStatsHandler.
func NewClearStatsHandler(rawEvents stats.RawEventRepository, buckets stats.BucketRepository, records stats.MaxRecordRepository, registry *stats.Registry) *ClearStatsHandler {
	return &ClearStatsHandler{
		rawEvents: rawEvents,
		buckets:   buckets,
		records:   records,
		registry:  registry,
	}
}

// Handle wipes the raw log, every bucket table and the max records.
func (h *ClearStatsHandler) Handle(ctx context.Context) (*ClearStatsResult, error) {
	if err := h.rawEvents.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear_stats: failed to clear raw events: %w", err)
	}

	result := &ClearStatsResult{}
	for _, g := range h.registry.All() {
		if err := h.buckets.Reset(ctx, g); err != nil {
			return nil, fmt.Errorf("clear_stats: failed to reset %s buckets: %w", g.Code(), err)
		}
		result.GranularitiesCleared++
	}

	if err := h.records.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear_stats: failed to clear max records: %w", err)
	}

	return result, nil
}
