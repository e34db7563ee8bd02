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

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	FinalizeMatch(ctx context.Context, matchID int, input models.FinalizeMatchInput) (*models.Match, error)
	UnfinalizeMatch(ctx context.Context, matchID int) (*models.Match, error)
}

type matchService struct {
	tx             repositories.TxRunner
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	tournamentRepo repositories.TournamentRepository
	scoring        ScoringService
	hub            RoomBroadcaster
	logger         *slog.Logger
}

func NewMatchService(
	tx repositories.TxRunner,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	tournamentRepo repositories.TournamentRepository,
	scoring ScoringService,
	hub RoomBroadcaster,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:             tx,
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		tournamentRepo: tournamentRepo,
		scoring:        scoring,
		hub:            hub,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return match, nil
}

// FinalizeMatch records a match result, advances the winner into the next
// round and, when this was the round's last open match, marks the round
// finalized. Everything runs in one transaction so a failed advancement
// leaves the match pending.
func (s *matchService) FinalizeMatch(ctx context.Context, matchID int, input models.FinalizeMatchInput) (*models.Match, error) {
	winnerName := strings.TrimSpace(input.WinnerName)
	if err := validateScoreShape(input.SetsWon, input.SetsLost); err != nil {
		return nil, err
	}
	var finalScore *string
	if fs := strings.TrimSpace(input.FinalScore); fs != "" {
		finalScore = &fs
	}

	var (
		match          *models.Match
		round          *models.Round
		roundFinalized bool
		picksScored    int
	)
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		match, err = s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
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
			return ErrMatchAlreadyFinalized
		}
		if brackets.IsTBD(winnerName) {
			return ErrWinnerUndecided
		}
		if !match.HasPlayer(winnerName) {
			return ErrWinnerNotInMatch
		}

		tournament, err := s.tournamentRepo.GetByID(ctx, tx, match.TournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if err := validateScoreForFormat(tournament.Format, input.SetsWon); err != nil {
			return err
		}

		if err := s.matchRepo.UpdateResult(ctx, tx, match.ID, winnerName, input.SetsWon, input.SetsLost, finalScore, input.IsRetirement); err != nil {
			return err
		}

		round, err = s.roundRepo.GetByID(ctx, tx, match.RoundID)
		if err != nil {
			return err
		}
		totalRounds, err := s.roundRepo.CountByTournament(ctx, tx, match.TournamentID)
		if err != nil {
			return err
		}
		if round.RoundNumber < totalRounds {
			if err := s.advanceWinner(ctx, tx, match, round, winnerName); err != nil {
				return err
			}
		}

		pending, err := s.matchRepo.CountPendingByRound(ctx, tx, round.ID)
		if err != nil {
			return err
		}
		if pending == 0 && !round.IsFinalized {
			if err := s.roundRepo.SetFinalized(ctx, tx, round.ID, true); err != nil {
				return err
			}
			round.IsFinalized = true
			roundFinalized = true
		}

		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		if err != nil {
			return err
		}

		picksScored, err = s.scoring.ScoreMatch(ctx, tx, match)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match finalized",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.String("winner", winnerName),
		slog.Bool("retirement", input.IsRetirement),
		slog.Bool("round_finalized", roundFinalized),
		slog.Int("picks_scored", picksScored),
	)

	room := brackets.TournamentRoom(match.TournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventMatchFinalized,
		Payload: match,
		RoomID:  room,
	})
	if roundFinalized {
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:    brackets.EventRoundFinalized,
			Payload: round,
			RoomID:  room,
		})
	}
	return match, nil
}

// UnfinalizeMatch reverts a finalized match back to pending, retracts the
// winner from the next round's slot and reopens the round flag if it had
// been set. The revert is refused once the destination match has itself
// been finalized, since its recorded result depends on the advanced
// player.
func (s *matchService) UnfinalizeMatch(ctx context.Context, matchID int) (*models.Match, error) {
	var (
		match         *models.Match
		round         *models.Round
		roundReopened bool
	)
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		match, err = s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.IsBye {
			return ErrMatchIsBye
		}
		if match.Status != models.MatchStatusFinalized {
			return ErrMatchNotFinalized
		}

		round, err = s.roundRepo.GetByID(ctx, tx, match.RoundID)
		if err != nil {
			return err
		}
		totalRounds, err := s.roundRepo.CountByTournament(ctx, tx, match.TournamentID)
		if err != nil {
			return err
		}
		if round.RoundNumber < totalRounds {
			if err := s.retractWinner(ctx, tx, match, round); err != nil {
				return err
			}
		}

		if err := s.matchRepo.ClearResult(ctx, tx, match.ID); err != nil {
			return err
		}
		if round.IsFinalized {
			if err := s.roundRepo.SetFinalized(ctx, tx, round.ID, false); err != nil {
				return err
			}
			round.IsFinalized = false
			roundReopened = true
		}
		if err := s.scoring.UnscoreMatch(ctx, tx, match.ID); err != nil {
			return err
		}

		match, err = s.matchRepo.GetByID(ctx, tx, matchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match unfinalized",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.Bool("round_reopened", roundReopened),
	)

	room := brackets.TournamentRoom(match.TournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventMatchUnfinalized,
		Payload: match,
		RoomID:  room,
	})
	if roundReopened {
		s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
			Type:    brackets.EventRoundReopened,
			Payload: round,
			RoomID:  room,
		})
	}
	return match, nil
}

func (s *matchService) advanceWinner(ctx context.Context, tx repositories.SQLExecutor, match *models.Match, round *models.Round, winnerName string) error {
	destRound, err := s.roundRepo.GetByTournamentAndNumber(ctx, tx, match.TournamentID, round.RoundNumber+1)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return fmt.Errorf("%w: round %d has no successor round", ErrBracketSlotMissing, round.RoundNumber)
		}
		return err
	}

	destNumber := brackets.DestinationMatchNumber(match.MatchNumber)
	slot := brackets.DestinationSlot(match.MatchNumber)
	err = s.matchRepo.AssignSlot(ctx, tx, destRound.ID, destNumber, slot, winnerName, match.SeedOf(winnerName))
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return fmt.Errorf("%w: round %d match %d", ErrBracketSlotMissing, destRound.RoundNumber, destNumber)
		}
		return err
	}

	s.logger.DebugContext(ctx, "winner advanced",
		slog.Int("source_match", match.MatchNumber),
		slog.Int("destination_round", destRound.RoundNumber),
		slog.Int("destination_match", destNumber),
		slog.Int("slot", slot),
	)
	return nil
}

func (s *matchService) retractWinner(ctx context.Context, tx repositories.SQLExecutor, match *models.Match, round *models.Round) error {
	destRound, err := s.roundRepo.GetByTournamentAndNumber(ctx, tx, match.TournamentID, round.RoundNumber+1)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return fmt.Errorf("%w: round %d has no successor round", ErrBracketSlotMissing, round.RoundNumber)
		}
		return err
	}

	destNumber := brackets.DestinationMatchNumber(match.MatchNumber)
	slot := brackets.DestinationSlot(match.MatchNumber)
	dest, err := s.matchRepo.GetByRoundAndNumber(ctx, tx, destRound.ID, destNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return fmt.Errorf("%w: round %d match %d", ErrBracketSlotMissing, destRound.RoundNumber, destNumber)
		}
		return err
	}
	if dest.Status == models.MatchStatusFinalized {
		return ErrMatchWinnerAdvanced
	}
	return s.matchRepo.ClearSlot(ctx, tx, destRound.ID, destNumber, slot)
}
