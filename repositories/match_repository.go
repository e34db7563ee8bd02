package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchNumberConflict    = errors.New("match number already taken in this round")
	ErrMatchRoundInvalid      = errors.New("invalid round reference")
	ErrMatchTournamentInvalid = errors.New("invalid tournament reference")
)

const matchColumns = `
	id, tournament_id, round_id, match_number,
	player1_name, player1_seed, player2_name, player2_seed,
	status, winner_name, final_score, sets_won, sets_lost,
	is_retirement, is_bye, created_at, deleted_at`

type MatchRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByRoundAndNumber(ctx context.Context, exec SQLExecutor, roundID, matchNumber int) (*models.Match, error)
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, winnerName string, setsWon, setsLost int, finalScore *string, isRetirement bool) error
	ClearResult(ctx context.Context, exec SQLExecutor, id int) error
	AssignSlot(ctx context.Context, exec SQLExecutor, roundID, matchNumber, slot int, playerName string, playerSeed *int) error
	BulkAssignSlots(ctx context.Context, exec SQLExecutor, roundID int, assignments []brackets.SlotAssignment) error
	ClearSlot(ctx context.Context, exec SQLExecutor, roundID, matchNumber, slot int) error
	CountByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error)
	CountPendingByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error)
	CountPendingByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	CountDistinctPlayers(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	SoftDeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			tournament_id, round_id, match_number,
			player1_name, player1_seed, player2_name, player2_seed,
			status, winner_name, final_score, sets_won, sets_lost,
			is_retirement, is_bye
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	for _, m := range matches {
		err := executor.QueryRowContext(ctx, query,
			m.TournamentID, m.RoundID, m.MatchNumber,
			m.Player1Name, m.Player1Seed, m.Player2Name, m.Player2Seed,
			m.Status, m.WinnerName, m.FinalScore, m.SetsWon, m.SetsLost,
			m.IsRetirement, m.IsBye,
		).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return r.handleMatchError(err)
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE id = $1 AND deleted_at IS NULL`
	return r.scanMatchRow(executor.QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`
	return r.scanMatchRow(executor.QueryRowContext(ctx, query, id), id)
}

func (r *postgresMatchRepository) GetByRoundAndNumber(ctx context.Context, exec SQLExecutor, roundID, matchNumber int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE round_id = $1 AND match_number = $2 AND deleted_at IS NULL`
	return r.scanMatchRow(executor.QueryRowContext(ctx, query, roundID, matchNumber), matchNumber)
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE round_id = $1 AND deleted_at IS NULL
		ORDER BY match_number ASC`

	rows, err := executor.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for round %d: %w", roundID, err)
	}
	return r.scanMatchRows(rows)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Match, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT
			m.id, m.tournament_id, m.round_id, m.match_number,
			m.player1_name, m.player1_seed, m.player2_name, m.player2_seed,
			m.status, m.winner_name, m.final_score, m.sets_won, m.sets_lost,
			m.is_retirement, m.is_bye, m.created_at, m.deleted_at
		FROM matches m
		JOIN rounds r ON r.id = m.round_id
		WHERE m.tournament_id = $1 AND m.deleted_at IS NULL
		ORDER BY r.round_number ASC, m.match_number ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	return r.scanMatchRows(rows)
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, winnerName string, setsWon, setsLost int, finalScore *string, isRetirement bool) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, winner_name = $2, sets_won = $3, sets_lost = $4,
		    final_score = $5, is_retirement = $6
		WHERE id = $7 AND deleted_at IS NULL`

	result, err := executor.ExecContext(ctx, query,
		models.MatchStatusFinalized, winnerName, setsWon, setsLost, finalScore, isRetirement, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ClearResult(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, winner_name = NULL, sets_won = NULL, sets_lost = NULL,
		    final_score = NULL, is_retirement = FALSE
		WHERE id = $2 AND deleted_at IS NULL`

	result, err := executor.ExecContext(ctx, query, models.MatchStatusPending, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// AssignSlot writes an advancing player into one slot of a destination
// match. A nil seed keeps whatever seed the slot already holds.
func (r *postgresMatchRepository) AssignSlot(ctx context.Context, exec SQLExecutor, roundID, matchNumber, slot int, playerName string, playerSeed *int) error {
	executor := r.getExecutor(exec)

	query, err := slotAssignQuery(slot)
	if err != nil {
		return err
	}
	result, err := executor.ExecContext(ctx, query, playerName, playerSeed, roundID, matchNumber)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// BulkAssignSlots applies a round's worth of slot writes in at most two
// statements, one per player slot. Missing destination matches surface as
// ErrMatchNotFound so the caller can abort the transaction.
func (r *postgresMatchRepository) BulkAssignSlots(ctx context.Context, exec SQLExecutor, roundID int, assignments []brackets.SlotAssignment) error {
	executor := r.getExecutor(exec)

	for _, slot := range []int{brackets.SlotPlayer1, brackets.SlotPlayer2} {
		matchNumbers := make([]int64, 0, len(assignments))
		names := make([]string, 0, len(assignments))
		seeds := make([]sql.NullInt64, 0, len(assignments))
		for _, a := range assignments {
			if a.Slot != slot {
				continue
			}
			matchNumbers = append(matchNumbers, int64(a.MatchNumber))
			names = append(names, a.PlayerName)
			seed := sql.NullInt64{}
			if a.PlayerSeed != nil {
				seed = sql.NullInt64{Int64: int64(*a.PlayerSeed), Valid: true}
			}
			seeds = append(seeds, seed)
		}
		if len(matchNumbers) == 0 {
			continue
		}

		query, err := bulkSlotAssignQuery(slot)
		if err != nil {
			return err
		}
		result, err := executor.ExecContext(ctx, query,
			roundID, pq.Array(matchNumbers), pq.Array(names), pq.Array(seeds))
		if err != nil {
			return r.handleMatchError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected != int64(len(matchNumbers)) {
			return ErrMatchNotFound
		}
	}
	return nil
}

// ClearSlot resets a destination slot back to the undecided placeholder.
func (r *postgresMatchRepository) ClearSlot(ctx context.Context, exec SQLExecutor, roundID, matchNumber, slot int) error {
	executor := r.getExecutor(exec)

	var query string
	switch slot {
	case brackets.SlotPlayer1:
		query = `UPDATE matches SET player1_name = $1, player1_seed = NULL
			WHERE round_id = $2 AND match_number = $3 AND deleted_at IS NULL`
	case brackets.SlotPlayer2:
		query = `UPDATE matches SET player2_name = $1, player2_seed = NULL
			WHERE round_id = $2 AND match_number = $3 AND deleted_at IS NULL`
	default:
		return fmt.Errorf("invalid player slot %d", slot)
	}

	result, err := executor.ExecContext(ctx, query, brackets.TBD, roundID, matchNumber)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM matches WHERE round_id = $1 AND deleted_at IS NULL`

	var count int
	if err := executor.QueryRowContext(ctx, query, roundID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches for round %d: %w", roundID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) CountPendingByRound(ctx context.Context, exec SQLExecutor, roundID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM matches
		WHERE round_id = $1 AND status <> $2 AND deleted_at IS NULL`

	var count int
	if err := executor.QueryRowContext(ctx, query, roundID, models.MatchStatusFinalized).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending matches for round %d: %w", roundID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) CountPendingByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM matches
		WHERE tournament_id = $1 AND status <> $2 AND deleted_at IS NULL`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID, models.MatchStatusFinalized).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND deleted_at IS NULL`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

// CountDistinctPlayers counts the real entrants of the opening round,
// placeholders and byes excluded.
func (r *postgresMatchRepository) CountDistinctPlayers(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(DISTINCT player) FROM (
			SELECT m.player1_name AS player
			FROM matches m JOIN rounds r ON r.id = m.round_id
			WHERE m.tournament_id = $1 AND r.round_number = 1 AND m.deleted_at IS NULL
			UNION ALL
			SELECT m.player2_name AS player
			FROM matches m JOIN rounds r ON r.id = m.round_id
			WHERE m.tournament_id = $1 AND r.round_number = 1 AND m.deleted_at IS NULL
		) AS entrants
		WHERE player NOT IN ($2, $3)`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID, brackets.TBD, brackets.Bye).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) SoftDeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET deleted_at = NOW() WHERE tournament_id = $1 AND deleted_at IS NULL`
	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to soft delete matches for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func slotAssignQuery(slot int) (string, error) {
	switch slot {
	case brackets.SlotPlayer1:
		return `UPDATE matches
			SET player1_name = $1, player1_seed = COALESCE($2, player1_seed)
			WHERE round_id = $3 AND match_number = $4 AND deleted_at IS NULL`, nil
	case brackets.SlotPlayer2:
		return `UPDATE matches
			SET player2_name = $1, player2_seed = COALESCE($2, player2_seed)
			WHERE round_id = $3 AND match_number = $4 AND deleted_at IS NULL`, nil
	default:
		return "", fmt.Errorf("invalid player slot %d", slot)
	}
}

func bulkSlotAssignQuery(slot int) (string, error) {
	switch slot {
	case brackets.SlotPlayer1:
		return `UPDATE matches
			SET player1_name = u.player_name,
			    player1_seed = COALESCE(u.player_seed, matches.player1_seed)
			FROM unnest($2::int[], $3::text[], $4::int[]) AS u(match_number, player_name, player_seed)
			WHERE matches.round_id = $1
			  AND matches.match_number = u.match_number
			  AND matches.deleted_at IS NULL`, nil
	case brackets.SlotPlayer2:
		return `UPDATE matches
			SET player2_name = u.player_name,
			    player2_seed = COALESCE(u.player_seed, matches.player2_seed)
			FROM unnest($2::int[], $3::text[], $4::int[]) AS u(match_number, player_name, player_seed)
			WHERE matches.round_id = $1
			  AND matches.match_number = u.match_number
			  AND matches.deleted_at IS NULL`, nil
	default:
		return "", fmt.Errorf("invalid player slot %d", slot)
	}
}

func (r *postgresMatchRepository) scanMatchRow(row *sql.Row, ref int) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.RoundID, &m.MatchNumber,
		&m.Player1Name, &m.Player1Seed, &m.Player2Name, &m.Player2Seed,
		&m.Status, &m.WinnerName, &m.FinalScore, &m.SetsWon, &m.SetsLost,
		&m.IsRetirement, &m.IsBye, &m.CreatedAt, &m.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", ref, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) scanMatchRows(rows *sql.Rows) ([]models.Match, error) {
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := rows.Scan(
			&m.ID, &m.TournamentID, &m.RoundID, &m.MatchNumber,
			&m.Player1Name, &m.Player1Seed, &m.Player2Name, &m.Player2Seed,
			&m.Status, &m.WinnerName, &m.FinalScore, &m.SetsWon, &m.SetsLost,
			&m.IsRetirement, &m.IsBye, &m.CreatedAt, &m.DeletedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "matches_round_id_match_number_key" {
				return ErrMatchNumberConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "matches_round_id_fkey":
				return ErrMatchRoundInvalid
			case "matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			}
		}
	}
	return err
}
