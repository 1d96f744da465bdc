// Package world содержит read-only модель состояния мира: владение
// комнатами, резервации, таблички и отображаемые данные игроков.
// Сервис статистики это состояние не изменяет, только читает для
// обогащения ответов API.
package world

import (
	"encoding/json"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// Reservation - резервация контроллера комнаты.
type Reservation struct {
	User    shared.UserID
	EndTime time.Time
}

// Sign - табличка на контроллере комнаты.
type Sign struct {
	User shared.UserID
	Text string
	Time time.Time
}

// RoomState - снимок состояния одной комнаты.
type RoomState struct {
	Room shared.RoomID

	// Owner - владелец контроллера (пустой, если комната ничья).
	Owner shared.UserID

	// Level - уровень контроллера владельца.
	Level int

	// Reservation - активная резервация (nil, если нет).
	Reservation *Reservation

	// Sign - табличка на контроллере (nil, если нет).
	Sign *Sign

	// SafeMode - активен ли режим безопасности.
	SafeMode bool

	// NoviceUntil - граница новичковой зоны (нулевое время, если нет).
	NoviceUntil time.Time
}

// IsOwned возвращает true, если у комнаты есть владелец.
func (r RoomState) IsOwned() bool {
	return r.Owner != ""
}

// UserInfo - отображаемые данные игрока для ответов API.
type UserInfo struct {
	ID       shared.UserID
	Username string

	// Badge - JSON-описание значка игрока, отдаётся клиенту как есть.
	Badge json.RawMessage
}
