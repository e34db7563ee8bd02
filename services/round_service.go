package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
)

type RoundService interface {
	GetRound(ctx context.Context, roundID int) (*models.Round, error)
	CloseSubmissions(ctx context.Context, roundID, closedBy int) (*models.CloseSubmissionsResult, error)
	ReopenSubmissions(ctx context.Context, roundID int) (*models.ReopenSubmissionsResult, error)
	SetActiveRound(ctx context.Context, tournamentID, roundNumber int) (*models.Round, error)
}

type roundService struct {
	tx             repositories.TxRunner
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	pickRepo       repositories.PickRepository
	tournamentRepo repositories.TournamentRepository
	hub            RoomBroadcaster
	logger         *slog.Logger
}

func NewRoundService(
	tx repositories.TxRunner,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	pickRepo repositories.PickRepository,
	tournamentRepo repositories.TournamentRepository,
	hub RoomBroadcaster,
	logger *slog.Logger,
) RoundService {
	return &roundService{
		tx:             tx,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		pickRepo:       pickRepo,
		tournamentRepo: tournamentRepo,
		hub:            hub,
		logger:         logger,
	}
}

func (s *roundService) GetRound(ctx context.Context, roundID int) (*models.Round, error) {
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get round %d: %w", roundID, err)
	}
	matches, err := s.matchRepo.ListByRound(ctx, nil, roundID)
	if err != nil {
		return nil, err
	}
	round.Matches = matches
	return round, nil
}

// CloseSubmissions locks the active round for picking. Draft picks on the
// round's matches are promoted to submitted ones so nobody loses a saved
// prediction to the deadline.
func (s *roundService) CloseSubmissions(ctx context.Context, roundID, closedBy int) (*models.CloseSubmissionsResult, error) {
	var (
		round  *models.Round
		drafts int
	)
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		round, err = s.roundRepo.GetByID(ctx, tx, roundID)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundNotFound) {
				return ErrRoundNotFound
			}
			return err
		}
		if !round.IsActive {
			return ErrRoundNotActive
		}
		if round.SubmissionsClosed() {
			return ErrSubmissionsAlreadyClosed
		}
		if err := s.roundRepo.CloseSubmissions(ctx, tx, roundID, closedBy, time.Now()); err != nil {
			return err
		}
		drafts, err = s.pickRepo.PromoteDraftsByRound(ctx, tx, roundID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "round submissions closed",
		slog.Int("round_id", roundID),
		slog.Int("closed_by", closedBy),
		slog.Int("drafts_finalized", drafts),
	)

	room := brackets.TournamentRoom(round.TournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventSubmissionsClosed,
		Payload: map[string]int{"round_id": roundID, "drafts_finalized": drafts},
		RoomID:  room,
	})
	return &models.CloseSubmissionsResult{DraftsFinalized: drafts}, nil
}

// ReopenSubmissions lifts the submission lock and reports the round's
// match counts, so the caller can warn that finalized matches stay
// non-pickable.
func (s *roundService) ReopenSubmissions(ctx context.Context, roundID int) (*models.ReopenSubmissionsResult, error) {
	var (
		round   *models.Round
		pending int
		total   int
	)
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		round, err = s.roundRepo.GetByID(ctx, tx, roundID)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundNotFound) {
				return ErrRoundNotFound
			}
			return err
		}
		if !round.SubmissionsClosed() {
			return ErrSubmissionsNotClosed
		}
		if err := s.roundRepo.ReopenSubmissions(ctx, tx, roundID); err != nil {
			return err
		}
		if pending, err = s.matchRepo.CountPendingByRound(ctx, tx, roundID); err != nil {
			return err
		}
		total, err = s.matchRepo.CountByRound(ctx, tx, roundID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &models.ReopenSubmissionsResult{
		PendingMatches:   pending,
		FinalizedMatches: total - pending,
		TotalMatches:     total,
	}

	s.logger.InfoContext(ctx, "round submissions reopened",
		slog.Int("round_id", roundID),
		slog.Int("pending_matches", result.PendingMatches),
		slog.Int("finalized_matches", result.FinalizedMatches),
	)

	room := brackets.TournamentRoom(round.TournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventSubmissionsReopened,
		Payload: result,
		RoomID:  room,
	})
	return result, nil
}

// SetActiveRound makes the given round the tournament's single active
// round, deactivating every other one in the same statement.
func (s *roundService) SetActiveRound(ctx context.Context, tournamentID, roundNumber int) (*models.Round, error) {
	var round *models.Round
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetByID(ctx, tx, tournamentID); err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		var err error
		round, err = s.roundRepo.GetByTournamentAndNumber(ctx, tx, tournamentID, roundNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrRoundNotFound) {
				return ErrRoundNotFound
			}
			return err
		}
		return s.roundRepo.SetActiveRound(ctx, tx, tournamentID, roundNumber)
	})
	if err != nil {
		return nil, err
	}
	round.IsActive = true

	s.logger.InfoContext(ctx, "active round changed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round_number", roundNumber),
	)

	room := brackets.TournamentRoom(tournamentID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventBracketUpdated,
		Payload: map[string]int{"active_round": roundNumber},
		RoomID:  room,
	})
	return round, nil
}
