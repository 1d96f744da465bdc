package postgres

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAX RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MaxRecordRepository implements stats.MaxRecordRepository for PostgreSQL.
// All granularities share one table keyed by (interval_min, bucket_index).
type MaxRecordRepository struct {
	conn *Connection
}

// NewMaxRecordRepository creates a new MaxRecordRepository.
func NewMaxRecordRepository(conn *Connection) *MaxRecordRepository {
	return &MaxRecordRepository{conn: conn}
}

// RaiseMaxima raises stored records to the observed maxima. GREATEST keeps
// every value monotonic: a stored record is never lowered, even when two
// consolidation passes race.
func (r *MaxRecordRepository) RaiseMaxima(ctx context.Context, records []stats.MaxRecord) error {
	if len(records) == 0 {
		return nil
	}

	raiseSet := ""
	for i, c := range metricColumns {
		if i > 0 {
			raiseSet += ", "
		}
		raiseSet += fmt.Sprintf("%s = GREATEST(stat_max_records.%s, EXCLUDED.%s)", c.Column, c.Column, c.Column)
	}

	sql := fmt.Sprintf(`
		INSERT INTO stat_max_records (interval_min, bucket_index, %s)
		VALUES ($1, $2, %s)
		ON CONFLICT (interval_min, bucket_index) DO UPDATE SET %s
	`, metricColumnList, metricPlaceholders(3), raiseSet)

	batch := &pgx.Batch{}
	for _, rec := range records {
		args := []any{rec.Granularity.Minutes(), rec.BucketIndex}
		args = append(args, metricValues(rec.Metrics)...)
		batch.Queue(sql, args...)
	}

	br := r.conn.Pool().SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to raise max record: %w", err)
		}
	}

	return nil
}

// ListWindow returns a granularity's records with index in [from, to].
func (r *MaxRecordRepository) ListWindow(ctx context.Context, g stats.Granularity, from, to int64) ([]stats.MaxRecord, error) {
	sql := fmt.Sprintf(`
		SELECT bucket_index, %s
		FROM stat_max_records
		WHERE interval_min = $1 AND bucket_index BETWEEN $2 AND $3
		ORDER BY bucket_index
	`, metricColumnList)

	rows, err := r.conn.Query(ctx, sql, g.Minutes(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list max records: %w", err)
	}
	defer rows.Close()

	var records []stats.MaxRecord
	for rows.Next() {
		var index int64
		vals := scanTargets()
		dests := []any{&index}
		for i := range vals {
			dests = append(dests, &vals[i])
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan max record: %w", err)
		}
		records = append(records, stats.MaxRecord{
			Granularity: g,
			BucketIndex: index,
			Metrics:     collectMetrics(vals),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate max records: %w", err)
	}

	return records, nil
}

// Clear wipes all records. Used by the administrative reset only.
func (r *MaxRecordRepository) Clear(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM stat_max_records`); err != nil {
		return fmt.Errorf("failed to clear max records: %w", err)
	}
	return nil
}
