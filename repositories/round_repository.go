package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grandstand-picks/grandstand/models"
	"github.com/lib/pq"
)

var (
	ErrRoundNotFound          = errors.New("round not found")
	ErrRoundNumberConflict    = errors.New("round number already taken in this tournament")
	ErrRoundTournamentInvalid = errors.New("invalid tournament reference")
)

const roundColumns = `
	id, tournament_id, round_number, name, is_active, is_finalized,
	submissions_closed_at, submissions_closed_by, opens_at, deadline, created_at`

type RoundRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, rounds []*models.Round) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error)
	GetByTournamentAndNumber(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (*models.Round, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Round, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	CountUnfinalizedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	SetFinalized(ctx context.Context, exec SQLExecutor, id int, finalized bool) error
	SetActiveRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) error
	CloseSubmissions(ctx context.Context, exec SQLExecutor, id int, closedBy int, closedAt time.Time) error
	ReopenSubmissions(ctx context.Context, exec SQLExecutor, id int) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRoundRepository) CreateBatch(ctx context.Context, exec SQLExecutor, rounds []*models.Round) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO rounds (tournament_id, round_number, name, is_active, is_finalized, opens_at, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	for _, round := range rounds {
		err := executor.QueryRowContext(ctx, query,
			round.TournamentID, round.RoundNumber, round.Name,
			round.IsActive, round.IsFinalized, round.OpensAt, round.Deadline,
		).Scan(&round.ID, &round.CreatedAt)
		if err != nil {
			return r.handleRoundError(err)
		}
	}
	return nil
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundColumns + ` FROM rounds WHERE id = $1`
	return r.scanRoundRow(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRoundRepository) GetByTournamentAndNumber(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (*models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundColumns + ` FROM rounds WHERE tournament_id = $1 AND round_number = $2`
	return r.scanRoundRow(executor.QueryRowContext(ctx, query, tournamentID, roundNumber))
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Round, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + roundColumns + `
		FROM rounds
		WHERE tournament_id = $1
		ORDER BY round_number ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	rounds := make([]models.Round, 0)
	for rows.Next() {
		var round models.Round
		if scanErr := rows.Scan(
			&round.ID, &round.TournamentID, &round.RoundNumber, &round.Name,
			&round.IsActive, &round.IsFinalized,
			&round.SubmissionsClosedAt, &round.SubmissionsClosedBy,
			&round.OpensAt, &round.Deadline, &round.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, round)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

func (r *postgresRoundRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rounds WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rounds for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresRoundRepository) CountUnfinalizedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rounds WHERE tournament_id = $1 AND is_finalized = FALSE`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unfinalized rounds for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresRoundRepository) SetFinalized(ctx context.Context, exec SQLExecutor, id int, finalized bool) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE rounds SET is_finalized = $1 WHERE id = $2`, finalized, id)
	if err != nil {
		return fmt.Errorf("failed to update finalized flag for round %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

// SetActiveRound flips the active flag of every round of the tournament in
// one statement, so exactly one round ends up active no matter what the
// flags held before.
func (r *postgresRoundRepository) SetActiveRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE rounds SET is_active = (round_number = $2) WHERE tournament_id = $1`,
		tournamentID, roundNumber)
	if err != nil {
		return fmt.Errorf("failed to set active round %d for tournament %d: %w", roundNumber, tournamentID, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) CloseSubmissions(ctx context.Context, exec SQLExecutor, id int, closedBy int, closedAt time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE rounds SET submissions_closed_at = $1, submissions_closed_by = $2 WHERE id = $3`,
		closedAt, closedBy, id)
	if err != nil {
		return fmt.Errorf("failed to close submissions for round %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) ReopenSubmissions(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE rounds SET submissions_closed_at = NULL, submissions_closed_by = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to reopen submissions for round %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

// DeleteByTournament removes the rounds of a tournament. Matches and picks
// hanging off them go with them through the schema's cascade rules.
func (r *postgresRoundRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM rounds WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete rounds for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresRoundRepository) scanRoundRow(row *sql.Row) (*models.Round, error) {
	round := &models.Round{}
	err := row.Scan(
		&round.ID, &round.TournamentID, &round.RoundNumber, &round.Name,
		&round.IsActive, &round.IsFinalized,
		&round.SubmissionsClosedAt, &round.SubmissionsClosedBy,
		&round.OpensAt, &round.Deadline, &round.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round: %w", err)
	}
	return round, nil
}

func (r *postgresRoundRepository) handleRoundError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "rounds_tournament_id_round_number_key" {
				return ErrRoundNumberConflict
			}
		case "23503":
			if pqErr.Constraint == "rounds_tournament_id_fkey" {
				return ErrRoundTournamentInvalid
			}
		}
	}
	return err
}
