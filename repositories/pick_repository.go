package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/grandstand-picks/grandstand/models"
	"github.com/lib/pq"
)

var (
	ErrPickNotFound     = errors.New("pick not found")
	ErrPickMatchInvalid = errors.New("invalid match reference")
	ErrPickUserInvalid  = errors.New("invalid user reference")
)

type PickRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, pick *models.Pick) error
	GetByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.Pick, error)
	ListByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) ([]models.Pick, error)
	ListByUserAndRound(ctx context.Context, exec SQLExecutor, userID, roundID int) ([]models.Pick, error)
	ListSubmittedByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Pick, error)
	CountSubmittedByTournament(ctx context.Context, tournamentID int) (map[int]int, error)
	PromoteDraftsByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error)
	UpdatePoints(ctx context.Context, exec SQLExecutor, pickID int, points int) error
	ClearPointsByMatch(ctx context.Context, exec SQLExecutor, matchID int) error
	LeaderboardByTournament(ctx context.Context, tournamentID int) ([]models.LeaderboardEntry, error)
	LeaderboardOverall(ctx context.Context) ([]models.LeaderboardEntry, error)
}

type postgresPickRepository struct {
	db *sql.DB
}

func NewPostgresPickRepository(db *sql.DB) PickRepository {
	return &postgresPickRepository{db: db}
}

func (r *postgresPickRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts the pick or, when the user already picked this match,
// replaces the prediction in place. Points are reset since the prediction
// changed.
func (r *postgresPickRepository) Upsert(ctx context.Context, exec SQLExecutor, pick *models.Pick) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO picks (user_id, match_id, predicted_winner, predicted_sets_won, predicted_sets_lost, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, match_id) DO UPDATE
		SET predicted_winner = EXCLUDED.predicted_winner,
		    predicted_sets_won = EXCLUDED.predicted_sets_won,
		    predicted_sets_lost = EXCLUDED.predicted_sets_lost,
		    status = EXCLUDED.status,
		    points = NULL,
		    updated_at = NOW()
		RETURNING id, points, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		pick.UserID, pick.MatchID,
		pick.PredictedWinner, pick.PredictedSetsWon, pick.PredictedSetsLost,
		pick.Status,
	).Scan(&pick.ID, &pick.Points, &pick.CreatedAt, &pick.UpdatedAt)

	return r.handlePickError(err)
}

func (r *postgresPickRepository) GetByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.Pick, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, user_id, match_id, predicted_winner, predicted_sets_won, predicted_sets_lost,
		       status, points, created_at, updated_at
		FROM picks
		WHERE user_id = $1 AND match_id = $2`

	pick := &models.Pick{}
	err := executor.QueryRowContext(ctx, query, userID, matchID).Scan(
		&pick.ID, &pick.UserID, &pick.MatchID,
		&pick.PredictedWinner, &pick.PredictedSetsWon, &pick.PredictedSetsLost,
		&pick.Status, &pick.Points, &pick.CreatedAt, &pick.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPickNotFound
		}
		return nil, fmt.Errorf("failed to scan pick for user %d match %d: %w", userID, matchID, err)
	}
	return pick, nil
}

func (r *postgresPickRepository) ListByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) ([]models.Pick, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT p.id, p.user_id, p.match_id, p.predicted_winner, p.predicted_sets_won, p.predicted_sets_lost,
		       p.status, p.points, p.created_at, p.updated_at
		FROM picks p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1 AND m.tournament_id = $2 AND m.deleted_at IS NULL
		ORDER BY p.match_id ASC`

	rows, err := executor.QueryContext(ctx, query, userID, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query picks for user %d tournament %d: %w", userID, tournamentID, err)
	}
	return r.scanPickRows(rows)
}

func (r *postgresPickRepository) ListByUserAndRound(ctx context.Context, exec SQLExecutor, userID, roundID int) ([]models.Pick, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT p.id, p.user_id, p.match_id, p.predicted_winner, p.predicted_sets_won, p.predicted_sets_lost,
		       p.status, p.points, p.created_at, p.updated_at
		FROM picks p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1 AND m.round_id = $2 AND m.deleted_at IS NULL
		ORDER BY m.match_number ASC`

	rows, err := executor.QueryContext(ctx, query, userID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query picks for user %d round %d: %w", userID, roundID, err)
	}
	return r.scanPickRows(rows)
}

func (r *postgresPickRepository) ListSubmittedByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Pick, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, user_id, match_id, predicted_winner, predicted_sets_won, predicted_sets_lost,
		       status, points, created_at, updated_at
		FROM picks
		WHERE match_id = $1 AND status = $2
		ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID, models.PickStatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("failed to query submitted picks for match %d: %w", matchID, err)
	}
	return r.scanPickRows(rows)
}

// CountSubmittedByTournament reports how many submitted picks each of the
// tournament's matches has, keyed by match ID. Matches without picks are
// absent from the map.
func (r *postgresPickRepository) CountSubmittedByTournament(ctx context.Context, tournamentID int) (map[int]int, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT p.match_id, COUNT(*)
		FROM picks p
		JOIN matches m ON m.id = p.match_id
		WHERE m.tournament_id = $1 AND m.deleted_at IS NULL AND p.status = $2
		GROUP BY p.match_id`

	rows, err := executor.QueryContext(ctx, query, tournamentID, models.PickStatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("failed to query pick counts for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var matchID, count int
		if scanErr := rows.Scan(&matchID, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pick count row: %w", scanErr)
		}
		counts[matchID] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during pick count rows iteration: %w", err)
	}
	return counts, nil
}

// PromoteDraftsByRound turns every draft pick on the round's live matches
// into a submitted one and reports how many were promoted.
func (r *postgresPickRepository) PromoteDraftsByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE picks
		SET status = $1, updated_at = NOW()
		WHERE status = $2
		  AND match_id IN (SELECT id FROM matches WHERE round_id = $3 AND deleted_at IS NULL)`

	result, err := executor.ExecContext(ctx, query, models.PickStatusSubmitted, models.PickStatusDraft, roundID)
	if err != nil {
		return 0, fmt.Errorf("failed to promote draft picks for round %d: %w", roundID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(affected), nil
}

func (r *postgresPickRepository) UpdatePoints(ctx context.Context, exec SQLExecutor, pickID int, points int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE picks SET points = $1, updated_at = NOW() WHERE id = $2`, points, pickID)
	if err != nil {
		return fmt.Errorf("failed to update points for pick %d: %w", pickID, err)
	}
	return checkAffectedRows(result, ErrPickNotFound)
}

func (r *postgresPickRepository) ClearPointsByMatch(ctx context.Context, exec SQLExecutor, matchID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`UPDATE picks SET points = NULL, updated_at = NOW() WHERE match_id = $1 AND points IS NOT NULL`, matchID)
	if err != nil {
		return fmt.Errorf("failed to clear points for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresPickRepository) LeaderboardByTournament(ctx context.Context, tournamentID int) ([]models.LeaderboardEntry, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT u.id, u.display_name, COALESCE(SUM(p.points), 0) AS points, COUNT(p.points) AS scored_picks
		FROM picks p
		JOIN users u ON u.id = p.user_id
		JOIN matches m ON m.id = p.match_id
		WHERE m.tournament_id = $1 AND m.deleted_at IS NULL
		GROUP BY u.id, u.display_name
		ORDER BY points DESC, u.display_name ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0)
	for rows.Next() {
		var entry models.LeaderboardEntry
		if scanErr := rows.Scan(&entry.UserID, &entry.DisplayName, &entry.Points, &entry.ScoredPicks); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return entries, nil
}

// LeaderboardOverall aggregates points across every tournament.
func (r *postgresPickRepository) LeaderboardOverall(ctx context.Context) ([]models.LeaderboardEntry, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT u.id, u.display_name, COALESCE(SUM(p.points), 0) AS points, COUNT(p.points) AS scored_picks
		FROM picks p
		JOIN users u ON u.id = p.user_id
		JOIN matches m ON m.id = p.match_id
		WHERE m.deleted_at IS NULL
		GROUP BY u.id, u.display_name
		ORDER BY points DESC, u.display_name ASC`

	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0)
	for rows.Next() {
		var entry models.LeaderboardEntry
		if scanErr := rows.Scan(&entry.UserID, &entry.DisplayName, &entry.Points, &entry.ScoredPicks); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresPickRepository) scanPickRows(rows *sql.Rows) ([]models.Pick, error) {
	defer rows.Close()

	picks := make([]models.Pick, 0)
	for rows.Next() {
		var pick models.Pick
		if scanErr := rows.Scan(
			&pick.ID, &pick.UserID, &pick.MatchID,
			&pick.PredictedWinner, &pick.PredictedSetsWon, &pick.PredictedSetsLost,
			&pick.Status, &pick.Points, &pick.CreatedAt, &pick.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pick row: %w", scanErr)
		}
		picks = append(picks, pick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during pick rows iteration: %w", err)
	}
	return picks, nil
}

func (r *postgresPickRepository) handlePickError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "picks_match_id_fkey":
				return ErrPickMatchInvalid
			case "picks_user_id_fkey":
				return ErrPickUserInvalid
			}
		}
	}
	return err
}
