package stats

import (
	"context"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RAW EVENT LOG
// ══════════════════════════════════════════════════════════════════════════════

// RawEventRepository - журнал сырых событий, ожидающих консолидации.
// Только добавление и подрезка: строки не изменяются после записи.
type RawEventRepository interface {
	// AppendBatch записывает пакет событий одной операцией.
	AppendBatch(ctx context.Context, events []RawStatEvent) error

	// ListAll возвращает полное текущее содержимое журнала.
	ListAll(ctx context.Context) ([]RawStatEvent, error)

	// PruneThrough удаляет события с endTime <= cutoff и возвращает
	// число удалённых строк. События, пришедшие после cutoff, остаются
	// до следующего прохода консолидации.
	PruneThrough(ctx context.Context, cutoff time.Time) (int64, error)

	// Clear полностью очищает журнал (административный сброс).
	Clear(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// BUCKETS
// ══════════════════════════════════════════════════════════════════════════════

// BucketRepository - хранилище корзин. Для каждой гранулярности своя
// таблица; конкретная таблица выбирается по типизированному хэндлу
// гранулярности, построенному на старте.
type BucketRepository interface {
	// FindByKeys возвращает текущие значения корзин по набору ключей.
	// Отсутствующие ключи в результат не попадают.
	FindByKeys(ctx context.Context, g Granularity, keys []BucketKey) (map[BucketKey]Metrics, error)

	// ApplyMergePlan применяет план слияния одной пакетной операцией.
	ApplyMergePlan(ctx context.Context, g Granularity, plan MergePlan) error

	// SumUserWindow суммирует метрики игрока по всем комнатам в окне.
	SumUserWindow(ctx context.Context, g Granularity, user shared.UserID, from, to int64) (Metrics, error)

	// UserRoomSeries возвращает ряд корзин игрока в комнате по индексам окна.
	UserRoomSeries(ctx context.Context, g Granularity, room shared.RoomID, user shared.UserID, from, to int64) (map[int64]Metrics, error)

	// RoomMetricBreakdown возвращает для набора комнат сумму одной метрики
	// в окне с разбивкой по игрокам.
	RoomMetricBreakdown(ctx context.Context, g Granularity, rooms []shared.RoomID, metric MetricName, from, to int64) (map[shared.RoomID]map[shared.UserID]int64, error)

	// Reset удаляет все корзины гранулярности (административный сброс).
	Reset(ctx context.Context, g Granularity) error
}

// ══════════════════════════════════════════════════════════════════════════════
// MAX RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// MaxRecordRepository - хранилище рекордов по корзинам.
type MaxRecordRepository interface {
	// RaiseMaxima поднимает записи рекордов до наблюдаемых максимумов.
	// Существующие значения никогда не уменьшаются.
	RaiseMaxima(ctx context.Context, records []MaxRecord) error

	// ListWindow возвращает записи рекордов гранулярности с индексом в [from, to].
	ListWindow(ctx context.Context, g Granularity, from, to int64) ([]MaxRecord, error)

	// Clear удаляет все записи рекордов (административный сброс).
	Clear(ctx context.Context) error
}
