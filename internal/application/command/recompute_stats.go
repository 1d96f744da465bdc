package command

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STATS COMMAND
// Внеочередной запуск консолидации. Сама джоба защищена single-flight
// охраной, поэтому наложиться на плановый проход ручной запуск не может -
// он просто будет пропущен.
// ══════════════════════════════════════════════════════════════════════════════

// ConsolidationTrigger запускает проход консолидации вне расписания.
// Реализуется планировщиком; интерфейс здесь, чтобы application слой не
// зависел от инфраструктуры.
type ConsolidationTrigger interface {
	RunConsolidation(ctx context.Context) error
}

// RecomputeStatsHandler handles the manual consolidation trigger.
type RecomputeStatsHandler struct {
	trigger ConsolidationTrigger
}

// NewRecomputeStatsHandler creates a new RecomputeStatsHandler.
func NewRecomputeStatsHandler(trigger ConsolidationTrigger) *RecomputeStatsHandler {
	return &RecomputeStatsHandler{trigger: trigger}
}

// Handle runs one consolidation pass now.
func (h *RecomputeStatsHandler) Handle(ctx context.Context) error {
	if err := h.trigger.RunConsolidation(ctx); err != nil {
		return fmt.Errorf("recompute_stats: %w", err)
	}
	return nil
}
