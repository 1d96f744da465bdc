package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// RAW EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RawEventRepository implements stats.RawEventRepository for PostgreSQL.
// The log is append-only: rows are inserted by the flush path and removed
// by consolidation pruning, never updated.
type RawEventRepository struct {
	conn *Connection
}

// NewRawEventRepository creates a new RawEventRepository.
func NewRawEventRepository(conn *Connection) *RawEventRepository {
	return &RawEventRepository{conn: conn}
}

// AppendBatch writes a batch of events in a single round trip.
func (r *RawEventRepository) AppendBatch(ctx context.Context, events []stats.RawStatEvent) error {
	if len(events) == 0 {
		return nil
	}

	sql := fmt.Sprintf(`
		INSERT INTO raw_stat_events (room, user_id, end_time, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, metricColumnList)

	batch := &pgx.Batch{}
	for _, ev := range events {
		args := []any{string(ev.Room), string(ev.User), ev.EndTime}
		args = append(args, metricValues(ev.Metrics)...)
		batch.Queue(sql, args...)
	}

	br := r.conn.Pool().SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append raw event: %w", err)
		}
	}

	return nil
}

// ListAll returns the full current contents of the log in insertion order.
func (r *RawEventRepository) ListAll(ctx context.Context) ([]stats.RawStatEvent, error) {
	sql := fmt.Sprintf(`
		SELECT id, room, user_id, end_time, %s
		FROM raw_stat_events
		ORDER BY id
	`, metricColumnList)

	rows, err := r.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw events: %w", err)
	}
	defer rows.Close()

	var events []stats.RawStatEvent
	for rows.Next() {
		var (
			ev      stats.RawStatEvent
			room    string
			user    string
			endTime time.Time
			vals    = scanTargets()
			dests   = []any{&ev.ID, &room, &user, &endTime}
		)
		for i := range vals {
			dests = append(dests, &vals[i])
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan raw event: %w", err)
		}
		ev.Room = shared.RoomID(room)
		ev.User = shared.UserID(user)
		ev.EndTime = endTime
		ev.Metrics = collectMetrics(vals)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raw events: %w", err)
	}

	return events, nil
}

// PruneThrough deletes events with end_time at or before the cutoff and
// returns the number of rows removed. Events that arrived after the cutoff
// stay for the next consolidation pass.
func (r *RawEventRepository) PruneThrough(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `
		DELETE FROM raw_stat_events WHERE end_time <= $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune raw events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Clear wipes the log entirely. Used by the administrative reset only.
func (r *RawEventRepository) Clear(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM raw_stat_events`); err != nil {
		return fmt.Errorf("failed to clear raw events: %w", err)
	}
	return nil
}
