// Package leaderboard содержит доменную модель сезонных рейтингов.
// Рейтинг ведётся по режимам: каждый режим привязан к одной исходной
// метрике, дельты которой складываются в счёт игрока за активный сезон.
// Ранги пересчитываются полной пересортировкой на каждом проходе
// консолидации, а не инкрементальным поддержанием порядка.
package leaderboard

import (
	"fmt"
	"regexp"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING MODES
// ══════════════════════════════════════════════════════════════════════════════

// ScoringMode - именованный рейтинг, привязанный к одной исходной метрике.
type ScoringMode string

const (
	// ModeWorld - общий рейтинг по накопленному контролю энергии.
	ModeWorld ScoringMode = "world"

	// ModePower - рейтинг по переработанному пауэру.
	ModePower ScoringMode = "power"
)

// AllModes возвращает сконфигурированные режимы в каноническом порядке.
func AllModes() []ScoringMode {
	return []ScoringMode{ModeWorld, ModePower}
}

// IsValid проверяет, что режим известен.
func (m ScoringMode) IsValid() bool {
	return m == ModeWorld || m == ModePower
}

// Metric возвращает исходную метрику, дельты которой формируют счёт режима.
func (m ScoringMode) Metric() stats.MetricName {
	switch m {
	case ModeWorld:
		return stats.MetricEnergyControl
	case ModePower:
		return stats.MetricPowerProcessed
	}
	return ""
}

// String возвращает строковое представление режима.
func (m ScoringMode) String() string {
	return string(m)
}

// ══════════════════════════════════════════════════════════════════════════════
// SEASONS
// ══════════════════════════════════════════════════════════════════════════════

// SeasonID - идентификатор сезона в формате "YYYY-MM".
type SeasonID string

var seasonIDPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// IsValid проверяет формат идентификатора сезона.
func (id SeasonID) IsValid() bool {
	return seasonIDPattern.MatchString(string(id))
}

// String возвращает строковое представление идентификатора.
func (id SeasonID) String() string {
	return string(id)
}

// Season - административно ограниченный период накопления счёта.
// Сезон неизменяем после создания; активный сезон отслеживается
// отдельным указателем, а не полем на самой записи.
type Season struct {
	// ID - идентификатор сезона ("2024-01").
	ID SeasonID

	// Name - отображаемое имя ("January 2024").
	Name string

	// Date - момент создания сезона.
	Date time.Time
}

// SeasonForTime выводит сезон из календарного времени: идентификатор
// "YYYY-MM" и имя "Month Year". Функция детерминированная, поэтому
// повторная ротация в том же месяце идемпотентна.
func SeasonForTime(t time.Time) Season {
	t = t.UTC()
	return Season{
		ID:   SeasonID(t.Format("2006-01")),
		Name: t.Format("January 2006"),
		Date: t,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

// Entry - одна строка рейтинга: счёт и ранг игрока в режиме за сезон.
// Уникальна по (режим, сезон, игрок). Счёт и ранг перезаписываются на
// каждом проходе; строки не удаляются иначе как полным сбросом.
type Entry struct {
	Mode   ScoringMode
	Season SeasonID
	User   shared.UserID

	// Score - накопленный счёт за сезон.
	Score int64

	// Rank - плотный ранг от нуля: 0..N-1 без пропусков и дублей.
	Rank int
}

// String возвращает краткое представление строки для логов.
func (e Entry) String() string {
	return fmt.Sprintf("%s/%s %s score=%d rank=%d", e.Mode, e.Season, e.User, e.Score, e.Rank)
}
