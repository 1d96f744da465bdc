package postgres

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// modeTables maps each scoring mode to its entry table. Modes are a closed
// set, so the mapping is fixed rather than configurable.
var modeTables = map[leaderboard.ScoringMode]string{
	leaderboard.ModeWorld: "leaderboard_world",
	leaderboard.ModePower: "leaderboard_power",
}

// EntryRepository implements leaderboard.EntryRepository for PostgreSQL.
// One table per scoring mode; rows are keyed by (season, user_id).
type EntryRepository struct {
	conn *Connection
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(conn *Connection) *EntryRepository {
	return &EntryRepository{conn: conn}
}

// table resolves the entry table for a mode.
func (r *EntryRepository) table(mode leaderboard.ScoringMode) (string, error) {
	t, ok := modeTables[mode]
	if !ok {
		return "", fmt.Errorf("no entry table for mode %q", mode)
	}
	return t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// READ OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

// ListSeason returns all rows of a mode for a season ordered by
// (rank ASC, user ASC). The ranker loads standings in this order, which
// pins the tie-break rule across recomputes.
func (r *EntryRepository) ListSeason(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID) ([]leaderboard.Entry, error) {
	table, err := r.table(mode)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT user_id, score, rank
		FROM %s
		WHERE season = $1
		ORDER BY rank, user_id
	`, table)

	rows, err := r.conn.Query(ctx, sql, string(season))
	if err != nil {
		return nil, fmt.Errorf("failed to list season entries: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows, mode, season)
}

// ListPage returns a page of a season's rows by ascending rank together
// with the total row count.
func (r *EntryRepository) ListPage(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, limit, offset int) (leaderboard.Page, error) {
	table, err := r.table(mode)
	if err != nil {
		return leaderboard.Page{}, err
	}

	var total int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE season = $1`, table)
	if err := r.conn.QueryRow(ctx, countSQL, string(season)).Scan(&total); err != nil {
		return leaderboard.Page{}, fmt.Errorf("failed to count season entries: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT user_id, score, rank
		FROM %s
		WHERE season = $1
		ORDER BY rank, user_id
		LIMIT $2 OFFSET $3
	`, table)

	rows, err := r.conn.Query(ctx, sql, string(season), limit, offset)
	if err != nil {
		return leaderboard.Page{}, fmt.Errorf("failed to list entry page: %w", err)
	}
	defer rows.Close()

	entries, err := r.scanEntries(rows, mode, season)
	if err != nil {
		return leaderboard.Page{}, err
	}

	return leaderboard.Page{Entries: entries, Total: total}, nil
}

// Find returns one user's row for a season.
func (r *EntryRepository) Find(ctx context.Context, mode leaderboard.ScoringMode, season leaderboard.SeasonID, user shared.UserID) (leaderboard.Entry, error) {
	table, err := r.table(mode)
	if err != nil {
		return leaderboard.Entry{}, err
	}

	sql := fmt.Sprintf(`
		SELECT score, rank FROM %s WHERE season = $1 AND user_id = $2
	`, table)

	entry := leaderboard.Entry{Mode: mode, Season: season, User: user}
	err = r.conn.QueryRow(ctx, sql, string(season), string(user)).Scan(&entry.Score, &entry.Rank)

	if IsNoRows(err) {
		return leaderboard.Entry{}, shared.ErrEntryNotFound
	}
	if err != nil {
		return leaderboard.Entry{}, fmt.Errorf("failed to find entry: %w", err)
	}

	return entry, nil
}

// FindAllSeasons returns one user's rows across all seasons of a mode,
// oldest season first.
func (r *EntryRepository) FindAllSeasons(ctx context.Context, mode leaderboard.ScoringMode, user shared.UserID) ([]leaderboard.Entry, error) {
	table, err := r.table(mode)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT season, score, rank
		FROM %s
		WHERE user_id = $1
		ORDER BY season
	`, table)

	rows, err := r.conn.Query(ctx, sql, string(user))
	if err != nil {
		return nil, fmt.Errorf("failed to list user entries: %w", err)
	}
	defer rows.Close()

	var entries []leaderboard.Entry
	for rows.Next() {
		entry := leaderboard.Entry{Mode: mode, User: user}
		var season string
		if err := rows.Scan(&season, &entry.Score, &entry.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan user entry: %w", err)
		}
		entry.Season = leaderboard.SeasonID(season)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user entries: %w", err)
	}

	return entries, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// WRITE OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

// ApplyWritePlan applies a differential write plan in a single transaction.
// Inserts are rows that had no prior entry; updates carry new score and rank
// for rows that changed during the ranking pass.
func (r *EntryRepository) ApplyWritePlan(ctx context.Context, mode leaderboard.ScoringMode, plan leaderboard.WritePlan) error {
	if plan.IsEmpty() {
		return nil
	}

	table, err := r.table(mode)
	if err != nil {
		return err
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (season, user_id, score, rank)
		VALUES ($1, $2, $3, $4)
	`, table)
	updateSQL := fmt.Sprintf(`
		UPDATE %s SET score = $3, rank = $4
		WHERE season = $1 AND user_id = $2
	`, table)

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range plan.Inserts {
			batch.Queue(insertSQL, string(e.Season), string(e.User), e.Score, e.Rank)
		}
		for _, e := range plan.Updates {
			batch.Queue(updateSQL, string(e.Season), string(e.User), e.Score, e.Rank)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := 0; i < len(plan.Inserts)+len(plan.Updates); i++ {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to apply write plan: %w", err)
			}
		}

		return nil
	})
}

// WipeAll deletes all rows of every mode across all seasons. Used by the
// administrative reset; the active season pointer is managed elsewhere.
func (r *EntryRepository) WipeAll(ctx context.Context) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, table := range modeTables {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
				return fmt.Errorf("failed to wipe %s: %w", table, err)
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// scanEntries drains rows of (user_id, score, rank) into entries.
func (r *EntryRepository) scanEntries(rows pgx.Rows, mode leaderboard.ScoringMode, season leaderboard.SeasonID) ([]leaderboard.Entry, error) {
	var entries []leaderboard.Entry
	for rows.Next() {
		entry := leaderboard.Entry{Mode: mode, Season: season}
		var user string
		if err := rows.Scan(&user, &entry.Score, &entry.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entry.User = shared.UserID(user)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}
