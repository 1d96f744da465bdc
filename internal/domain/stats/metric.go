// Package stats содержит доменную модель агрегации игровой статистики.
// Сырые счётчики из игрового цикла сворачиваются в корзины фиксированной
// ширины на нескольких гранулярностях; по каждой корзине дополнительно
// отслеживается максимум за её время жизни.
package stats

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// MetricName - имя счётчика, который игровой цикл может инкрементировать.
// Набор имён фиксирован: неизвестные метрики отбрасываются на входе.
type MetricName string

const (
	MetricEnergyHarvested     MetricName = "energyHarvested"
	MetricEnergyConstruction  MetricName = "energyConstruction"
	MetricEnergyCreeps        MetricName = "energyCreeps"
	MetricEnergyControl       MetricName = "energyControl"
	MetricCreepsProduced      MetricName = "creepsProduced"
	MetricCreepsLost          MetricName = "creepsLost"
	MetricPowerProcessed      MetricName = "powerProcessed"
)

// AllMetrics возвращает полный набор метрик в каноническом порядке.
func AllMetrics() []MetricName {
	return []MetricName{
		MetricEnergyHarvested,
		MetricEnergyConstruction,
		MetricEnergyCreeps,
		MetricEnergyControl,
		MetricCreepsProduced,
		MetricCreepsLost,
		MetricPowerProcessed,
	}
}

// IsValid проверяет, что имя метрики входит в фиксированный набор.
func (m MetricName) IsValid() bool {
	switch m {
	case MetricEnergyHarvested, MetricEnergyConstruction, MetricEnergyCreeps,
		MetricEnergyControl, MetricCreepsProduced, MetricCreepsLost,
		MetricPowerProcessed:
		return true
	}
	return false
}

// String возвращает строковое представление имени метрики.
func (m MetricName) String() string {
	return string(m)
}

// Metrics - набор значений счётчиков. Отсутствующий ключ эквивалентен нулю.
type Metrics map[MetricName]int64

// Add прибавляет значения other к m (поэлементно).
func (m Metrics) Add(other Metrics) {
	for name, v := range other {
		m[name] += v
	}
}

// Clone возвращает независимую копию набора.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for name, v := range m {
		out[name] = v
	}
	return out
}

// IsZero возвращает true, если все значения нулевые (или набор пуст).
func (m Metrics) IsZero() bool {
	for _, v := range m {
		if v != 0 {
			return false
		}
	}
	return true
}

// Raise поднимает каждое значение m до максимума с other; значения
// никогда не уменьшаются.
func (m Metrics) Raise(other Metrics) {
	for name, v := range other {
		if v > m[name] {
			m[name] = v
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GRANULARITIES
// ══════════════════════════════════════════════════════════════════════════════

// Granularity описывает одну гранулярность агрегации: ширину корзины
// и количество корзин, образующих скользящее окно хранения.
type Granularity struct {
	// Interval - ширина корзины.
	Interval time.Duration

	// Retained - число корзин в скользящем окне.
	Retained int
}

// Minutes возвращает ширину корзины в минутах; это каноническое имя
// гранулярности во внешних интерфейсах ("8", "180", "1440").
func (g Granularity) Minutes() int {
	return int(g.Interval / time.Minute)
}

// Code возвращает строковый код гранулярности.
func (g Granularity) Code() string {
	return strconv.Itoa(g.Minutes())
}

// BucketIndex вычисляет индекс корзины для момента времени:
// floor(unixMillis / intervalMillis).
func (g Granularity) BucketIndex(t time.Time) int64 {
	return t.UnixMilli() / g.Interval.Milliseconds()
}

// WindowStart возвращает первый индекс скользящего окна, заканчивающегося
// корзиной для момента t.
func (g Granularity) WindowStart(t time.Time) int64 {
	return g.BucketIndex(t) - int64(g.Retained) + 1
}

// Registry - построенный на старте набор сконфигурированных гранулярностей.
// Любое обращение к гранулярности идёт через типизированный хэндл из
// реестра, а не через конкатенацию строк.
type Registry struct {
	list      []Granularity
	byMinutes map[int]Granularity
}

// NewRegistry строит реестр из набора гранулярностей.
func NewRegistry(granularities ...Granularity) *Registry {
	r := &Registry{
		list:      make([]Granularity, 0, len(granularities)),
		byMinutes: make(map[int]Granularity, len(granularities)),
	}
	for _, g := range granularities {
		if _, dup := r.byMinutes[g.Minutes()]; dup {
			continue
		}
		r.list = append(r.list, g)
		r.byMinutes[g.Minutes()] = g
	}
	return r
}

// DefaultRegistry возвращает стандартную конфигурацию: корзины по
// 8 минут (8 штук), 180 минут (8 штук) и 1440 минут (7 штук).
func DefaultRegistry() *Registry {
	return NewRegistry(
		Granularity{Interval: 8 * time.Minute, Retained: 8},
		Granularity{Interval: 180 * time.Minute, Retained: 8},
		Granularity{Interval: 1440 * time.Minute, Retained: 7},
	)
}

// All возвращает все гранулярности в порядке конфигурации.
func (r *Registry) All() []Granularity {
	out := make([]Granularity, len(r.list))
	copy(out, r.list)
	return out
}

// ByMinutes ищет гранулярность по ширине корзины в минутах.
func (r *Registry) ByMinutes(minutes int) (Granularity, bool) {
	g, ok := r.byMinutes[minutes]
	return g, ok
}

// statNamePattern разбирает составное имя вида "energyHarvested8":
// имя метрики плюс код гранулярности.
var statNamePattern = regexp.MustCompile(`^(.*?)(\d+)$`)

// ParseStatName разбирает составное имя "метрика+интервал" и возвращает
// типизированные хэндлы. Используется картой мира при запросе overlay.
func (r *Registry) ParseStatName(statName string) (MetricName, Granularity, error) {
	m := statNamePattern.FindStringSubmatch(statName)
	if m == nil {
		return "", Granularity{}, fmt.Errorf("malformed stat name %q", statName)
	}
	metric := MetricName(m[1])
	if !metric.IsValid() {
		return "", Granularity{}, fmt.Errorf("unknown metric in stat name %q", statName)
	}
	minutes, err := strconv.Atoi(m[2])
	if err != nil {
		return "", Granularity{}, fmt.Errorf("malformed interval in stat name %q", statName)
	}
	g, ok := r.ByMinutes(minutes)
	if !ok {
		return "", Granularity{}, fmt.Errorf("unknown interval %d in stat name %q", minutes, statName)
	}
	return metric, g, nil
}
