package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
)

type PickService interface {
	SubmitPick(ctx context.Context, userID, matchID int, input models.SubmitPickInput) (*models.Pick, error)
	GetRoundPicks(ctx context.Context, userID, roundID int) ([]models.Pick, error)
	GetTournamentPicks(ctx context.Context, userID, tournamentID int) ([]models.Pick, error)
	TournamentLeaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardEntry, error)
	OverallLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
}

type pickService struct {
	tx             repositories.TxRunner
	pickRepo       repositories.PickRepository
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	tournamentRepo repositories.TournamentRepository
	logger         *slog.Logger
}

func NewPickService(
	tx repositories.TxRunner,
	pickRepo repositories.PickRepository,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
) PickService {
	return &pickService{
		tx:             tx,
		pickRepo:       pickRepo,
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		tournamentRepo: tournamentRepo,
		logger:         logger,
	}
}

// SubmitPick records or replaces the user's prediction for a match. The
// match row is locked for the duration so a finalize running at the same
// moment cannot slip a pick past scoring.
func (s *pickService) SubmitPick(ctx context.Context, userID, matchID int, input models.SubmitPickInput) (*models.Pick, error) {
	winner := strings.TrimSpace(input.PredictedWinner)
	if brackets.IsTBD(winner) || brackets.IsBye(winner) {
		return nil, fmt.Errorf("%w: cannot pick placeholder %q", ErrValidationFailed, winner)
	}
	if (input.PredictedSetsWon == nil) != (input.PredictedSetsLost == nil) {
		return nil, fmt.Errorf("%w: both set counts are required when predicting a score", ErrInvalidScoreShape)
	}
	if input.PredictedSetsWon != nil {
		if err := validateScoreShape(*input.PredictedSetsWon, *input.PredictedSetsLost); err != nil {
			return nil, err
		}
	}

	pick := &models.Pick{
		UserID:            userID,
		MatchID:           matchID,
		PredictedWinner:   winner,
		PredictedSetsWon:  input.PredictedSetsWon,
		PredictedSetsLost: input.PredictedSetsLost,
		Status:            models.PickStatusSubmitted,
	}
	if input.Draft {
		pick.Status = models.PickStatusDraft
	}

	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.IsBye {
			return ErrMatchIsBye
		}
		if match.Status != models.MatchStatusPending {
			return ErrMatchNotPickable
		}
		if !match.HasPlayer(winner) {
			return fmt.Errorf("%w: %q", ErrWinnerNotInMatch, winner)
		}

		round, err := s.roundRepo.GetByID(ctx, tx, match.RoundID)
		if err != nil {
			return err
		}
		if !round.IsActive {
			return ErrRoundNotActive
		}
		if round.SubmissionsClosed() {
			return ErrSubmissionsClosed
		}

		if input.PredictedSetsWon != nil {
			tournament, err := s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
			if err != nil {
				return err
			}
			if err := validateScoreForFormat(tournament.Format, *input.PredictedSetsWon); err != nil {
				return err
			}
		}

		if err := s.pickRepo.Upsert(ctx, tx, pick); err != nil {
			if errors.Is(err, repositories.ErrPickMatchInvalid) {
				return ErrMatchNotFound
			}
			if errors.Is(err, repositories.ErrPickUserInvalid) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "pick recorded",
		slog.Int("user_id", userID),
		slog.Int("match_id", matchID),
		slog.String("status", string(pick.Status)),
	)
	return pick, nil
}

func (s *pickService) GetRoundPicks(ctx context.Context, userID, roundID int) ([]models.Pick, error) {
	if _, err := s.roundRepo.GetByID(ctx, nil, roundID); err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	picks, err := s.pickRepo.ListByUserAndRound(ctx, nil, userID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks for round %d: %w", roundID, err)
	}
	return picks, nil
}

func (s *pickService) GetTournamentPicks(ctx context.Context, userID, tournamentID int) ([]models.Pick, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	picks, err := s.pickRepo.ListByUserAndTournament(ctx, nil, userID, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks for tournament %d: %w", tournamentID, err)
	}
	return picks, nil
}

func (s *pickService) TournamentLeaderboard(ctx context.Context, tournamentID int) ([]models.LeaderboardEntry, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	entries, err := s.pickRepo.LeaderboardByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard for tournament %d: %w", tournamentID, err)
	}
	return entries, nil
}

func (s *pickService) OverallLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := s.pickRepo.LeaderboardOverall(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build overall leaderboard: %w", err)
	}
	return entries, nil
}
