package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/world"
)

// ══════════════════════════════════════════════════════════════════════════════
// WORLD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// WorldRepository implements world.Repository for PostgreSQL. Read-only:
// the game backend owns these tables, the stats engine only enriches API
// responses with them.
type WorldRepository struct {
	conn *Connection
}

// NewWorldRepository creates a new WorldRepository.
func NewWorldRepository(conn *Connection) *WorldRepository {
	return &WorldRepository{conn: conn}
}

const roomColumns = `
	room, owner_id, level,
	reservation_user, reservation_end,
	sign_user, sign_text, sign_time,
	safe_mode, novice_until
`

// FindRoom returns the state of one room.
func (r *WorldRepository) FindRoom(ctx context.Context, room shared.RoomID) (world.RoomState, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM world_rooms WHERE room = $1
	`, roomColumns), string(room))

	state, err := scanRoomState(row)
	if IsNoRows(err) {
		return world.RoomState{}, shared.ErrRoomNotFound
	}
	if err != nil {
		return world.RoomState{}, fmt.Errorf("failed to find room: %w", err)
	}

	return state, nil
}

// FindRooms returns states for a set of rooms. Unknown rooms are simply
// absent from the result.
func (r *WorldRepository) FindRooms(ctx context.Context, rooms []shared.RoomID) (map[shared.RoomID]world.RoomState, error) {
	result := make(map[shared.RoomID]world.RoomState, len(rooms))
	if len(rooms) == 0 {
		return result, nil
	}

	names := make([]string, len(rooms))
	for i, room := range rooms {
		names[i] = string(room)
	}

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM world_rooms WHERE room = ANY($1)
	`, roomColumns), names)
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		state, err := scanRoomState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		result[state.Room] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}

	return result, nil
}

// FindUsers returns display data for a set of users.
func (r *WorldRepository) FindUsers(ctx context.Context, users []shared.UserID) (map[shared.UserID]world.UserInfo, error) {
	result := make(map[shared.UserID]world.UserInfo, len(users))
	if len(users) == 0 {
		return result, nil
	}

	ids := make([]string, len(users))
	for i, user := range users {
		ids[i] = string(user)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, username, badge FROM world_users WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			username string
			badge    []byte
		)
		if err := rows.Scan(&id, &username, &badge); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		info := world.UserInfo{
			ID:       shared.UserID(id),
			Username: username,
		}
		if len(badge) > 0 {
			info.Badge = json.RawMessage(badge)
		}
		result[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return result, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRoomState scans one world_rooms row, folding nullable columns into
// the optional reservation and sign values.
func scanRoomState(row rowScanner) (world.RoomState, error) {
	var (
		state           world.RoomState
		room            string
		owner           *string
		reservationUser *string
		reservationEnd  *time.Time
		signUser        *string
		signText        *string
		signTime        *time.Time
		noviceUntil     *time.Time
	)

	err := row.Scan(
		&room,
		&owner,
		&state.Level,
		&reservationUser,
		&reservationEnd,
		&signUser,
		&signText,
		&signTime,
		&state.SafeMode,
		&noviceUntil,
	)
	if err != nil {
		return world.RoomState{}, err
	}

	state.Room = shared.RoomID(room)
	if owner != nil {
		state.Owner = shared.UserID(*owner)
	}
	if reservationUser != nil && reservationEnd != nil {
		state.Reservation = &world.Reservation{
			User:    shared.UserID(*reservationUser),
			EndTime: *reservationEnd,
		}
	}
	if signUser != nil {
		sign := &world.Sign{User: shared.UserID(*signUser)}
		if signText != nil {
			sign.Text = *signText
		}
		if signTime != nil {
			sign.Time = *signTime
		}
		state.Sign = sign
	}
	if noviceUntil != nil {
		state.NoviceUntil = *noviceUntil
	}

	return state, nil
}
