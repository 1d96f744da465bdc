package postgres

import (
	"context"
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/leaderboard"
	"github.com/NhanHo/screepsmod-stats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SeasonRepository implements leaderboard.SeasonRepository for PostgreSQL.
type SeasonRepository struct {
	conn *Connection
}

// NewSeasonRepository creates a new SeasonRepository.
func NewSeasonRepository(conn *Connection) *SeasonRepository {
	return &SeasonRepository{conn: conn}
}

// Insert creates a season. Returns shared.ErrAlreadyExists if a season
// with the same id is already registered.
func (r *SeasonRepository) Insert(ctx context.Context, season leaderboard.Season) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO seasons (id, name, date)
		VALUES ($1, $2, $3)
	`, string(season.ID), season.Name, season.Date)

	if IsUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert season: %w", err)
	}

	return nil
}

// Find returns a season by id.
func (r *SeasonRepository) Find(ctx context.Context, id leaderboard.SeasonID) (leaderboard.Season, error) {
	var (
		season   leaderboard.Season
		seasonID string
	)

	err := r.conn.QueryRow(ctx, `
		SELECT id, name, date FROM seasons WHERE id = $1
	`, string(id)).Scan(&seasonID, &season.Name, &season.Date)

	if IsNoRows(err) {
		return leaderboard.Season{}, shared.ErrSeasonNotFound
	}
	if err != nil {
		return leaderboard.Season{}, fmt.Errorf("failed to find season: %w", err)
	}

	season.ID = leaderboard.SeasonID(seasonID)
	return season, nil
}

// List returns all seasons in creation order.
func (r *SeasonRepository) List(ctx context.Context) ([]leaderboard.Season, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, date FROM seasons ORDER BY date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []leaderboard.Season
	for rows.Next() {
		var (
			season   leaderboard.Season
			seasonID string
		)
		if err := rows.Scan(&seasonID, &season.Name, &season.Date); err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		season.ID = leaderboard.SeasonID(seasonID)
		seasons = append(seasons, season)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seasons: %w", err)
	}

	return seasons, nil
}
