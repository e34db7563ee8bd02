package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
)

// Points awarded per pick: picking the winner earns the base points, the
// exact set score on top of a correct winner earns the bonus.
const (
	PointsCorrectWinner = 2
	PointsExactScore    = 1
)

// ScoringService settles the submitted picks of a match once its result is
// recorded. It runs inside the finalize transaction so points never exist
// for a match that failed to finalize.
type ScoringService interface {
	ScoreMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) (int, error)
	UnscoreMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) error
}

type scoringService struct {
	pickRepo repositories.PickRepository
	logger   *slog.Logger
}

func NewScoringService(pickRepo repositories.PickRepository, logger *slog.Logger) ScoringService {
	return &scoringService{
		pickRepo: pickRepo,
		logger:   logger,
	}
}

// ScoreMatch awards points for every submitted pick on the match. Drafts
// are never scored. Retirement matches are left unscored entirely, the
// picks keep a null score rather than a zero.
func (s *scoringService) ScoreMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) (int, error) {
	if match.IsRetirement {
		s.logger.DebugContext(ctx, "retirement match left unscored", slog.Int("match_id", match.ID))
		return 0, nil
	}
	if match.WinnerName == nil || match.SetsWon == nil || match.SetsLost == nil {
		return 0, fmt.Errorf("cannot score match %d: result fields missing", match.ID)
	}

	picks, err := s.pickRepo.ListSubmittedByMatch(ctx, exec, match.ID)
	if err != nil {
		return 0, err
	}
	for i := range picks {
		points := ComputePoints(&picks[i], match)
		if err := s.pickRepo.UpdatePoints(ctx, exec, picks[i].ID, points); err != nil {
			return 0, err
		}
	}
	return len(picks), nil
}

// UnscoreMatch clears the points of every pick on the match, used when a
// result is reverted.
func (s *scoringService) UnscoreMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) error {
	return s.pickRepo.ClearPointsByMatch(ctx, exec, matchID)
}

// ComputePoints returns the points one pick earns against a recorded
// result.
func ComputePoints(pick *models.Pick, match *models.Match) int {
	if match.WinnerName == nil || pick.PredictedWinner != *match.WinnerName {
		return 0
	}
	points := PointsCorrectWinner
	if pick.PredictedSetsWon != nil && pick.PredictedSetsLost != nil &&
		match.SetsWon != nil && match.SetsLost != nil &&
		*pick.PredictedSetsWon == *match.SetsWon && *pick.PredictedSetsLost == *match.SetsLost {
		points += PointsExactScore
	}
	return points
}
