package command

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/collector"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLUSH STATS COMMAND
// Принудительный сброс аккумулятора в журнал, вне планового расписания.
// ══════════════════════════════════════════════════════════════════════════════

// FlushStatsResult contains the flush outcome.
type FlushStatsResult struct {
	EventsFlushed int
}

// FlushStatsHandler handles the manual accumulator flush.
type FlushStatsHandler struct {
	accumulator *collector.Accumulator
}

// NewFlushStatsHandler creates a new FlushStatsHandler.
func NewFlushStatsHandler(accumulator *collector.Accumulator) *FlushStatsHandler {
	return &FlushStatsHandler{accumulator: accumulator}
}

// Handle drains the accumulator into the raw event log.
func (h *FlushStatsHandler) Handle(ctx context.Context) (*FlushStatsResult, error) {
	flushed, err := h.accumulator.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("flush_stats: %w", err)
	}
	return &FlushStatsResult{EventsFlushed: flushed}, nil
}
