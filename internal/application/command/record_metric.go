// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/collector"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD METRIC COMMAND
// Принимает инкременты счётчиков из игрового цикла и складывает их в
// аккумулятор. Команда никогда не трогает хранилище: запись в журнал
// делает отдельный flush.
// ══════════════════════════════════════════════════════════════════════════════

// RecordMetricCommand содержит один инкремент счётчика.
type RecordMetricCommand struct {
	// Room - комната, в которой произошло событие.
	Room string

	// User - игрок, которому принадлежит счётчик.
	User string

	// Metric - имя счётчика из фиксированного набора.
	Metric string

	// Amount - величина инкремента.
	Amount int64
}

// Validate проверяет параметры команды.
func (c RecordMetricCommand) Validate() error {
	if !shared.RoomID(c.Room).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrInvalidRoom, c.Room)
	}
	if !shared.UserID(c.User).IsValid() {
		return shared.ErrInvalidUser
	}
	if !stats.MetricName(c.Metric).IsValid() {
		return fmt.Errorf("%w: %q", shared.ErrUnknownMetric, c.Metric)
	}
	return nil
}

// RecordMetricHandler handles RecordMetricCommand.
type RecordMetricHandler struct {
	accumulator *collector.Accumulator
}

// NewRecordMetricHandler creates a new RecordMetricHandler.
func NewRecordMetricHandler(accumulator *collector.Accumulator) *RecordMetricHandler {
	return &RecordMetricHandler{accumulator: accumulator}
}

// Handle validates the increment and feeds it into the accumulator.
func (h *RecordMetricHandler) Handle(_ context.Context, cmd RecordMetricCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	h.accumulator.Increment(
		shared.RoomID(cmd.Room),
		shared.UserID(cmd.User),
		stats.MetricName(cmd.Metric),
		cmd.Amount,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH FORM
// Игровой тик присылает инкременты пачкой - по одной на задетый счётчик.
// ══════════════════════════════════════════════════════════════════════════════

// RecordMetricBatchCommand содержит пакет инкрементов одного тика.
type RecordMetricBatchCommand struct {
	Increments []RecordMetricCommand
}

// RecordMetricBatchResult contains per-batch counters.
type RecordMetricBatchResult struct {
	Accepted int
	Rejected int
}

// HandleBatch feeds a batch of increments into the accumulator. Invalid
// increments are dropped individually; the rest of the batch goes through.
func (h *RecordMetricHandler) HandleBatch(ctx context.Context, cmd RecordMetricBatchCommand) RecordMetricBatchResult {
	var result RecordMetricBatchResult
	for _, inc := range cmd.Increments {
		if err := h.Handle(ctx, inc); err != nil {
			result.Rejected++
			continue
		}
		result.Accepted++
	}
	return result
}
