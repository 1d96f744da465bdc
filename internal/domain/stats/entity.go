package stats

import (
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RAW STAT EVENT
// ══════════════════════════════════════════════════════════════════════════════

// RawStatEvent - один сброс аккумулятора для пары (комната, игрок).
// Создаётся при flush, после создания не изменяется; удаляется джобой
// консолидации после успешного слияния во все гранулярности.
type RawStatEvent struct {
	// ID - суррогатный ключ строки журнала (0 до записи).
	ID int64

	// Room - комната, в которой накоплены счётчики.
	Room shared.RoomID

	// User - игрок, которому принадлежат счётчики.
	User shared.UserID

	// EndTime - момент сброса аккумулятора.
	EndTime time.Time

	// Metrics - накопленные дельты счётчиков.
	Metrics Metrics
}

// NewRawStatEvent создаёт событие журнала с меткой времени сброса.
func NewRawStatEvent(room shared.RoomID, user shared.UserID, endTime time.Time, metrics Metrics) RawStatEvent {
	return RawStatEvent{
		Room:    room,
		User:    user,
		EndTime: endTime,
		Metrics: metrics.Clone(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BUCKET
// ══════════════════════════════════════════════════════════════════════════════

// BucketKey - уникальный ключ корзины внутри одной гранулярности.
type BucketKey struct {
	BucketIndex int64
	User        shared.UserID
	Room        shared.RoomID
}

// Bucket - накопленные значения счётчиков для ключа (индекс, игрок, комната)
// на одной гранулярности. Значения только растут: каждое слияние прибавляет
// дельты к текущим суммам.
type Bucket struct {
	Granularity Granularity
	BucketIndex int64
	User        shared.UserID
	Room        shared.RoomID
	Metrics     Metrics
}

// Key возвращает ключ корзины.
func (b Bucket) Key() BucketKey {
	return BucketKey{BucketIndex: b.BucketIndex, User: b.User, Room: b.Room}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAX RECORD
// ══════════════════════════════════════════════════════════════════════════════

// MaxRecord - максимум каждой метрики, наблюдавшийся в корзине по всем
// парам (игрок, комната). Значения монотонно неубывающие: запись никогда
// не пересматривается вниз. Максимумы разных метрик в одной записи могут
// принадлежать разным игрокам и комнатам.
type MaxRecord struct {
	Granularity Granularity
	BucketIndex int64
	Metrics     Metrics
}
