package leaderboard

import (
	"context"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Page - страница рейтинга с общим числом строк для пагинации.
type Page struct {
	Entries []Entry
	Total   int
}

// EntryRepository определяет контракт хранилища строк рейтинга.
// Для каждого режима своя таблица, выбираемая по типизированному режиму;
// реализация находится в infrastructure слое.
type EntryRepository interface {
	// ListSeason возвращает все строки режима за сезон в порядке
	// (rank ASC, user ASC). Этот порядок фиксирует базу для
	// стабильного разрешения ничьих при пересчёте.
	ListSeason(ctx context.Context, mode ScoringMode, season SeasonID) ([]Entry, error)

	// ListPage возвращает страницу строк режима за сезон по возрастанию
	// ранга вместе с общим числом строк.
	ListPage(ctx context.Context, mode ScoringMode, season SeasonID, limit, offset int) (Page, error)

	// Find возвращает строку игрока за сезон.
	// Возвращает shared.ErrEntryNotFound, если строки нет.
	Find(ctx context.Context, mode ScoringMode, season SeasonID, user shared.UserID) (Entry, error)

	// FindAllSeasons возвращает строки игрока во всех сезонах режима.
	FindAllSeasons(ctx context.Context, mode ScoringMode, user shared.UserID) ([]Entry, error)

	// ApplyWritePlan применяет дифференциальный план одной пакетной
	// операцией.
	ApplyWritePlan(ctx context.Context, mode ScoringMode, plan WritePlan) error

	// WipeAll удаляет строки всех режимов за все сезоны
	// (административный сброс; указатель активного сезона не трогается).
	WipeAll(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SEASON REPOSITORY / STATE
// ══════════════════════════════════════════════════════════════════════════════

// SeasonRepository определяет контракт хранилища сезонов.
type SeasonRepository interface {
	// Insert создаёт сезон. Возвращает shared.ErrAlreadyExists, если
	// сезон с таким идентификатором уже есть.
	Insert(ctx context.Context, season Season) error

	// Find возвращает сезон по идентификатору.
	// Возвращает shared.ErrSeasonNotFound, если сезона нет.
	Find(ctx context.Context, id SeasonID) (Season, error)

	// List возвращает все сезоны по возрастанию даты создания.
	List(ctx context.Context) ([]Season, error)
}

// SeasonState - указатель активного сезона. Отсутствие активного сезона -
// штатное состояние: обновление рейтинга в этом случае молча пропускается.
type SeasonState interface {
	// Active возвращает идентификатор активного сезона.
	// Возвращает shared.ErrNoActiveSeason, если указатель не установлен.
	Active(ctx context.Context) (SeasonID, error)

	// SetActive переводит указатель на сезон.
	SetActive(ctx context.Context, id SeasonID) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache - горячий кэш верхушки рейтинга. Ошибки кэша не фатальны:
// промах или недоступность означают чтение из основного хранилища.
type Cache interface {
	// GetTop возвращает закэшированную страницу верхушки рейтинга.
	GetTop(ctx context.Context, mode ScoringMode, season SeasonID, limit, offset int) (Page, error)

	// SetTop кэширует страницу рейтинга с TTL.
	SetTop(ctx context.Context, mode ScoringMode, season SeasonID, limit, offset int, page Page, ttl time.Duration) error

	// Invalidate сбрасывает кэш режима за сезон после прохода пересчёта.
	Invalidate(ctx context.Context, mode ScoringMode, season SeasonID) error
}
