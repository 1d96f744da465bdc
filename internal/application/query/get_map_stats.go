package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MAP STATS QUERY
// Overlay карты мира: для пакета комнат возвращает владение, резервации,
// таблички, флаги безопасности и разбивку одной метрики по игрокам за
// текущее скользящее окно. Метрика и гранулярность кодируются одной
// строкой вида "energyHarvested8".
// ══════════════════════════════════════════════════════════════════════════════

// MaxMapStatsRooms ограничивает размер пакета комнат в одном запросе.
const MaxMapStatsRooms = 100

// GetMapStatsQuery содержит параметры запроса overlay.
type GetMapStatsQuery struct {
	// Rooms - имена запрашиваемых комнат.
	Rooms []string

	// StatName - составное имя "метрика+интервал" ("energyHarvested8").
	StatName string
}

// Validate проверяет корректность параметров запроса.
func (q GetMapStatsQuery) Validate() error {
	if len(q.Rooms) == 0 {
		return fmt.Errorf("%w: empty room list", shared.ErrInvalidParams)
	}
	if len(q.Rooms) > MaxMapStatsRooms {
		return fmt.Errorf("%w: at most %d rooms per request", shared.ErrInvalidParams, MaxMapStatsRooms)
	}
	for _, room := range q.Rooms {
		if !shared.RoomID(room).IsValid() {
			return fmt.Errorf("%w: %q", shared.ErrInvalidRoom, room)
		}
	}
	if q.StatName == "" {
		return fmt.Errorf("%w: empty stat name", shared.ErrInvalidParams)
	}
	return nil
}

// RoomOwnDTO - владение комнатой в overlay.
type RoomOwnDTO struct {
	User  string `json:"user"`
	Level int    `json:"level"`
}

// RoomReservationDTO - резервация контроллера в overlay.
type RoomReservationDTO struct {
	User    string    `json:"user"`
	EndTime time.Time `json:"endTime"`
}

// RoomSignDTO - табличка контроллера в overlay.
type RoomSignDTO struct {
	User string    `json:"user"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// MapRoomDTO - состояние одной комнаты в overlay.
type MapRoomDTO struct {
	// Own - владелец (nil, если комната ничья).
	Own *RoomOwnDTO `json:"own,omitempty"`

	// Reservation - активная резервация (nil, если нет).
	Reservation *RoomReservationDTO `json:"reservation,omitempty"`

	// Sign - табличка на контроллере (nil, если нет).
	Sign *RoomSignDTO `json:"sign,omitempty"`

	// SafeMode - активен ли режим безопасности.
	SafeMode bool `json:"safeMode,omitempty"`

	// NoviceUntil - граница новичковой зоны (нулевое время, если нет).
	NoviceUntil time.Time `json:"novice,omitempty"`

	// Stats - сумма запрошенной метрики в окне с разбивкой по игрокам.
	Stats map[string]int64 `json:"stats,omitempty"`
}

// MapUserDTO - отображаемые данные игрока, упомянутого в overlay.
type MapUserDTO struct {
	Username string          `json:"username"`
	Badge    json.RawMessage `json:"badge,omitempty"`
}

// GetMapStatsResult содержит overlay для пакета комнат.
type GetMapStatsResult struct {
	// Stat - запрошенное составное имя.
	Stat string `json:"stat"`

	// Rooms - состояния комнат по именам. Неизвестные миру комнаты
	// в карту не попадают.
	Rooms map[string]MapRoomDTO `json:"stats"`

	// Users - данные всех игроков, упомянутых в ответе.
	Users map[string]MapUserDTO `json:"users"`
}

// GetMapStatsHandler обрабатывает запрос overlay карты.
type GetMapStatsHandler struct {
	worldRepo world.Repository
	buckets   stats.BucketRepository
	registry  *stats.Registry
	now       func() time.Time
}

// NewGetMapStatsHandler создаёт новый обработчик overlay.
func NewGetMapStatsHandler(worldRepo world.Repository, buckets stats.BucketRepository, registry *stats.Registry) *GetMapStatsHandler {
	return &GetMapStatsHandler{
		worldRepo: worldRepo,
		buckets:   buckets,
		registry:  registry,
		now:       time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (h *GetMapStatsHandler) WithClock(now func() time.Time) *GetMapStatsHandler {
	h.now = now
	return h
}

// Handle выполняет запрос overlay.
func (h *GetMapStatsHandler) Handle(ctx context.Context, q GetMapStatsQuery) (*GetMapStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	metric, g, err := h.registry.ParseStatName(q.StatName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidParams, err)
	}

	rooms := make([]shared.RoomID, len(q.Rooms))
	for i, r := range q.Rooms {
		rooms[i] = shared.RoomID(r)
	}

	states, err := h.worldRepo.FindRooms(ctx, rooms)
	if err != nil {
		return nil, fmt.Errorf("get_map_stats: failed to load rooms: %w", err)
	}

	now := h.now()
	from, to := g.WindowStart(now), g.BucketIndex(now)

	breakdown, err := h.buckets.RoomMetricBreakdown(ctx, g, rooms, metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("get_map_stats: failed to load stats: %w", err)
	}

	result := &GetMapStatsResult{
		Stat:  q.StatName,
		Rooms: make(map[string]MapRoomDTO, len(states)),
		Users: map[string]MapUserDTO{},
	}

	mentioned := map[shared.UserID]struct{}{}
	for _, room := range rooms {
		state, ok := states[room]
		if !ok {
			continue
		}

		dto := MapRoomDTO{
			SafeMode:    state.SafeMode,
			NoviceUntil: state.NoviceUntil,
		}
		if state.IsOwned() {
			dto.Own = &RoomOwnDTO{User: state.Owner.String(), Level: state.Level}
			mentioned[state.Owner] = struct{}{}
		}
		if state.Reservation != nil {
			dto.Reservation = &RoomReservationDTO{
				User:    state.Reservation.User.String(),
				EndTime: state.Reservation.EndTime,
			}
			mentioned[state.Reservation.User] = struct{}{}
		}
		if state.Sign != nil {
			dto.Sign = &RoomSignDTO{
				User: state.Sign.User.String(),
				Text: state.Sign.Text,
				Time: state.Sign.Time,
			}
			mentioned[state.Sign.User] = struct{}{}
		}

		if byUser, ok := breakdown[room]; ok && len(byUser) > 0 {
			dto.Stats = make(map[string]int64, len(byUser))
			for user, value := range byUser {
				dto.Stats[user.String()] = value
				mentioned[user] = struct{}{}
			}
		}

		result.Rooms[room.String()] = dto
	}

	if len(mentioned) > 0 {
		users := make([]shared.UserID, 0, len(mentioned))
		for user := range mentioned {
			users = append(users, user)
		}
		infos, err := h.worldRepo.FindUsers(ctx, users)
		if err != nil {
			return nil, fmt.Errorf("get_map_stats: failed to resolve users: %w", err)
		}
		for id, info := range infos {
			result.Users[id.String()] = MapUserDTO{
				Username: info.Username,
				Badge:    info.Badge,
			}
		}
	}

	return result, nil
}
