package postgres

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUCKET REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BucketRepository implements stats.BucketRepository for PostgreSQL.
// Each granularity has its own table; the table name is resolved once at
// construction from the registry, never concatenated per query.
type BucketRepository struct {
	conn   *Connection
	tables map[int]string
}

// NewBucketRepository creates a new BucketRepository for the configured
// granularities.
func NewBucketRepository(conn *Connection, registry *stats.Registry) *BucketRepository {
	tables := make(map[int]string)
	for _, g := range registry.All() {
		tables[g.Minutes()] = fmt.Sprintf("stat_buckets_%d", g.Minutes())
	}
	return &BucketRepository{conn: conn, tables: tables}
}

// table resolves the bucket table for a granularity.
func (r *BucketRepository) table(g stats.Granularity) (string, error) {
	t, ok := r.tables[g.Minutes()]
	if !ok {
		return "", fmt.Errorf("no bucket table for granularity %s", g.Code())
	}
	return t, nil
}

// FindByKeys returns current bucket values for a set of keys. Keys with no
// stored bucket are absent from the result.
func (r *BucketRepository) FindByKeys(ctx context.Context, g stats.Granularity, keys []stats.BucketKey) (map[stats.BucketKey]stats.Metrics, error) {
	result := make(map[stats.BucketKey]stats.Metrics, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	table, err := r.table(g)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE bucket_index = $1 AND user_id = $2 AND room = $3
	`, metricColumnList, table)

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(sql, key.BucketIndex, string(key.User), string(key.Room))
	}

	br := r.conn.Pool().SendBatch(ctx, batch)
	defer br.Close()

	for _, key := range keys {
		vals := scanTargets()
		dests := make([]any, len(vals))
		for i := range vals {
			dests[i] = &vals[i]
		}

		err := br.QueryRow().Scan(dests...)
		if IsNoRows(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find bucket %v: %w", key, err)
		}
		result[key] = collectMetrics(vals)
	}

	return result, nil
}

// ApplyMergePlan applies inserts and updates from a merge plan in a single
// transaction. The plan carries full new sums, so both paths write absolute
// values; the upsert form keeps a concurrent insert from failing the pass.
func (r *BucketRepository) ApplyMergePlan(ctx context.Context, g stats.Granularity, plan stats.MergePlan) error {
	if plan.IsEmpty() {
		return nil
	}

	table, err := r.table(g)
	if err != nil {
		return err
	}

	upsertSet := ""
	for i, c := range metricColumns {
		if i > 0 {
			upsertSet += ", "
		}
		upsertSet += fmt.Sprintf("%s = EXCLUDED.%s", c.Column, c.Column)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (bucket_index, user_id, room, %s)
		VALUES ($1, $2, $3, %s)
		ON CONFLICT (bucket_index, user_id, room) DO UPDATE SET %s
	`, table, metricColumnList, metricPlaceholders(4), upsertSet)

	updateSet := ""
	for i, c := range metricColumns {
		if i > 0 {
			updateSet += ", "
		}
		updateSet += fmt.Sprintf("%s = $%d", c.Column, 4+i)
	}
	updateSQL := fmt.Sprintf(`
		UPDATE %s SET %s
		WHERE bucket_index = $1 AND user_id = $2 AND room = $3
	`, table, updateSet)

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range plan.Inserts {
			args := []any{b.BucketIndex, string(b.User), string(b.Room)}
			args = append(args, metricValues(b.Metrics)...)
			batch.Queue(insertSQL, args...)
		}
		for _, b := range plan.Updates {
			args := []any{b.BucketIndex, string(b.User), string(b.Room)}
			args = append(args, metricValues(b.Metrics)...)
			batch.Queue(updateSQL, args...)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := 0; i < len(plan.Inserts)+len(plan.Updates); i++ {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to apply merge plan: %w", err)
			}
		}

		return nil
	})
}

// SumUserWindow sums a user's metrics across all rooms over the window.
func (r *BucketRepository) SumUserWindow(ctx context.Context, g stats.Granularity, user shared.UserID, from, to int64) (stats.Metrics, error) {
	table, err := r.table(g)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1 AND bucket_index BETWEEN $2 AND $3
	`, metricSumList, table)

	vals := scanTargets()
	dests := make([]any, len(vals))
	for i := range vals {
		dests[i] = &vals[i]
	}

	if err := r.conn.QueryRow(ctx, sql, string(user), from, to).Scan(dests...); err != nil {
		return nil, fmt.Errorf("failed to sum user window: %w", err)
	}

	return collectMetrics(vals), nil
}

// UserRoomSeries returns per-bucket metrics for one user in one room over
// the window, keyed by bucket index.
func (r *BucketRepository) UserRoomSeries(ctx context.Context, g stats.Granularity, room shared.RoomID, user shared.UserID, from, to int64) (map[int64]stats.Metrics, error) {
	table, err := r.table(g)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT bucket_index, %s
		FROM %s
		WHERE room = $1 AND user_id = $2 AND bucket_index BETWEEN $3 AND $4
	`, metricColumnList, table)

	rows, err := r.conn.Query(ctx, sql, string(room), string(user), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query user room series: %w", err)
	}
	defer rows.Close()

	series := make(map[int64]stats.Metrics)
	for rows.Next() {
		var index int64
		vals := scanTargets()
		dests := []any{&index}
		for i := range vals {
			dests = append(dests, &vals[i])
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		series[index] = collectMetrics(vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series rows: %w", err)
	}

	return series, nil
}

// RoomMetricBreakdown returns, for a set of rooms, the sum of one metric
// over the window broken down by user. Rooms with no data are absent.
func (r *BucketRepository) RoomMetricBreakdown(ctx context.Context, g stats.Granularity, rooms []shared.RoomID, metric stats.MetricName, from, to int64) (map[shared.RoomID]map[shared.UserID]int64, error) {
	result := make(map[shared.RoomID]map[shared.UserID]int64)
	if len(rooms) == 0 {
		return result, nil
	}

	table, err := r.table(g)
	if err != nil {
		return nil, err
	}
	column, err := metricColumn(metric)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(rooms))
	for i, room := range rooms {
		names[i] = string(room)
	}

	sql := fmt.Sprintf(`
		SELECT room, user_id, COALESCE(SUM(%s), 0)
		FROM %s
		WHERE room = ANY($1) AND bucket_index BETWEEN $2 AND $3
		GROUP BY room, user_id
	`, column, table)

	rows, err := r.conn.Query(ctx, sql, names, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query room breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			room  string
			user  string
			total int64
		)
		if err := rows.Scan(&room, &user, &total); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		key := shared.RoomID(room)
		if result[key] == nil {
			result[key] = make(map[shared.UserID]int64)
		}
		result[key][shared.UserID(user)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breakdown rows: %w", err)
	}

	return result, nil
}

// Reset wipes all buckets of a granularity. Used by the administrative
// reset only.
func (r *BucketRepository) Reset(ctx context.Context, g stats.Granularity) error {
	table, err := r.table(g)
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("failed to reset buckets: %w", err)
	}
	return nil
}
