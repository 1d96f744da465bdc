package world

import (
	"context"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// Repository определяет read-only контракт к состоянию мира.
// Таблицы принадлежат игровому бэкенду; сервис статистики в них не пишет.
type Repository interface {
	// FindRoom возвращает состояние комнаты.
	// Возвращает shared.ErrRoomNotFound, если комнаты нет.
	FindRoom(ctx context.Context, room shared.RoomID) (RoomState, error)

	// FindRooms возвращает состояния набора комнат. Неизвестные комнаты
	// в результат не попадают.
	FindRooms(ctx context.Context, rooms []shared.RoomID) (map[shared.RoomID]RoomState, error)

	// FindUsers возвращает отображаемые данные набора игроков.
	FindUsers(ctx context.Context, users []shared.UserID) (map[shared.UserID]UserInfo, error)
}
