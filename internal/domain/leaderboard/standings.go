package leaderboard

import (
	"sort"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

// Standings - полное текущее состояние рейтинга одного режима за сезон,
// загруженное в память для пересчёта. Порядок загрузки фиксирует правило
// разрешения ничьих: равные счета сохраняют прежний относительный порядок
// (стабильная сортировка поверх порядка "ранг, затем игрок").
type Standings struct {
	mode    ScoringMode
	season  SeasonID
	entries []Entry
	index   map[shared.UserID]int

	// prior хранит счёт и ранг на момент загрузки для построения
	// дифференциального плана записи.
	prior map[shared.UserID]Entry
}

// LoadStandings строит состояние из строк, загруженных из хранилища.
// Строки должны быть отсортированы по (rank, user) - этот порядок
// становится базой для стабильного разрешения ничьих.
func LoadStandings(mode ScoringMode, season SeasonID, entries []Entry) *Standings {
	s := &Standings{
		mode:    mode,
		season:  season,
		entries: make([]Entry, len(entries)),
		index:   make(map[shared.UserID]int, len(entries)),
		prior:   make(map[shared.UserID]Entry, len(entries)),
	}
	copy(s.entries, entries)
	for i, e := range s.entries {
		s.index[e.User] = i
		s.prior[e.User] = e
	}
	return s
}

// Len возвращает число строк в состоянии.
func (s *Standings) Len() int {
	return len(s.entries)
}

// ApplyDeltas прибавляет дельты счёта к строкам. Игрок без строки
// начинает с нулевого счёта и добавляется в конец; новые игроки
// добавляются в детерминированном порядке (по идентификатору).
func (s *Standings) ApplyDeltas(deltas map[shared.UserID]int64) {
	newcomers := make([]shared.UserID, 0)
	for user, delta := range deltas {
		if delta == 0 {
			continue
		}
		if i, ok := s.index[user]; ok {
			s.entries[i].Score += delta
		} else {
			newcomers = append(newcomers, user)
		}
	}
	sort.Slice(newcomers, func(i, j int) bool { return newcomers[i] < newcomers[j] })
	for _, user := range newcomers {
		s.index[user] = len(s.entries)
		s.entries = append(s.entries, Entry{
			Mode:   s.mode,
			Season: s.season,
			User:   user,
			Score:  deltas[user],
		})
	}
}

// Rank выполняет полную стабильную пересортировку по убыванию счёта
// и назначает плотные ранги 0..N-1 по позиции.
func (s *Standings) Rank() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Score > s.entries[j].Score
	})
	for i := range s.entries {
		s.entries[i].Rank = i
		s.index[s.entries[i].User] = i
	}
}

// Entries возвращает строки в текущем порядке.
func (s *Standings) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// WritePlan - дифференциальный план записи после пересчёта: вставки для
// игроков без прежней строки и обновления строк с изменившимся счётом
// или рангом. Строки никогда не удаляются этим проходом.
type WritePlan struct {
	Inserts []Entry
	Updates []Entry
}

// IsEmpty возвращает true, если план не содержит операций.
func (p WritePlan) IsEmpty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0
}

// Diff строит дифференциальный план относительно состояния на момент
// загрузки.
func (s *Standings) Diff() WritePlan {
	var plan WritePlan
	for _, e := range s.entries {
		before, existed := s.prior[e.User]
		switch {
		case !existed:
			plan.Inserts = append(plan.Inserts, e)
		case before.Score != e.Score || before.Rank != e.Rank:
			plan.Updates = append(plan.Updates, e)
		}
	}
	return plan
}

// DeltasFromEvents сворачивает пакет сырых событий в карту
// "игрок -> суммарная дельта метрики режима". Нулевые итоги отбрасываются:
// режим без ненулевых дельт пропускается целиком.
func DeltasFromEvents(mode ScoringMode, events []stats.RawStatEvent) map[shared.UserID]int64 {
	metric := mode.Metric()
	deltas := make(map[shared.UserID]int64)
	for _, ev := range events {
		deltas[ev.User] += ev.Metrics[metric]
	}
	for user, v := range deltas {
		if v == 0 {
			delete(deltas, user)
		}
	}
	return deltas
}
