package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
	"github.com/grandstand-picks/grandstand/storage"
)

// Open-era tennis starts in 1968, anything before that or far in the
// future is a typo.
const (
	minTournamentYear = 1968
	maxTournamentYear = 2100
)

type CreateTournamentInput struct {
	Name    string                  `json:"name"`
	Year    int                     `json:"year"`
	Surface *string                 `json:"surface,omitempty"`
	AtpURL  *string                 `json:"atp_url,omitempty"`
	Format  models.TournamentFormat `json:"format"`
}

type UpdateTournamentInput struct {
	Name    string                  `json:"name"`
	Year    int                     `json:"year"`
	Surface *string                 `json:"surface,omitempty"`
	AtpURL  *string                 `json:"atp_url,omitempty"`
	Format  models.TournamentFormat `json:"format"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetBracket(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, id int) error
	Close(ctx context.Context, id, closedBy int) (*models.CloseTournamentResult, error)
	Reopen(ctx context.Context, id int, status *models.TournamentStatus) (*models.Tournament, error)
	UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	tx             repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	pickRepo       repositories.PickRepository
	uploader       storage.FileUploader
	hub            RoomBroadcaster
	logger         *slog.Logger
}

func NewTournamentService(
	tx repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	pickRepo repositories.PickRepository,
	uploader storage.FileUploader,
	hub RoomBroadcaster,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		pickRepo:       pickRepo,
		uploader:       uploader,
		hub:            hub,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameEmpty
	}
	if input.Year < minTournamentYear || input.Year > maxTournamentYear {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, input.Year)
	}
	if !models.ValidFormat(input.Format) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, input.Format)
	}

	tournament := &models.Tournament{
		Name:    name,
		Year:    input.Year,
		Surface: input.Surface,
		AtpURL:  input.AtpURL,
		Format:  input.Format,
		Status:  models.TournamentStatusDraft,
	}
	if err := s.tournamentRepo.Create(ctx, nil, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("name", tournament.Name),
		slog.Int("year", tournament.Year),
	)
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

// GetBracket returns the tournament with every round and match attached,
// each match carrying its submitted-pick count. Rounds, matches, and counts
// load in parallel and are stitched together here.
func (s *tournamentService) GetBracket(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		rounds     []models.Round
		matches    []models.Match
		pickCounts map[int]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rounds, err = s.roundRepo.ListByTournament(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		pickCounts, err = s.pickRepo.CountSubmittedByTournament(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket for tournament %d: %w", id, err)
	}

	matchesByRound := make(map[int][]models.Match, len(rounds))
	for _, m := range matches {
		count := pickCounts[m.ID]
		m.PickCount = &count
		matchesByRound[m.RoundID] = append(matchesByRound[m.RoundID], m)
	}
	for i := range rounds {
		rounds[i].Matches = matchesByRound[rounds[i].ID]
	}
	tournament.Rounds = rounds
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	for i := range tournaments {
		populateTournamentLogoURL(&tournaments[i], s.uploader)
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameEmpty
	}
	if input.Year < minTournamentYear || input.Year > maxTournamentYear {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, input.Year)
	}
	if !models.ValidFormat(input.Format) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, input.Format)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	tournament.Name = name
	tournament.Year = input.Year
	tournament.Surface = input.Surface
	tournament.AtpURL = input.AtpURL
	tournament.Format = input.Format

	if err := s.tournamentRepo.Update(ctx, nil, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to update tournament %d: %w", id, err)
	}
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}

// Delete soft-deletes the tournament and its matches in one transaction.
// Rounds stay in place, they are unreachable once the tournament is gone.
func (s *tournamentService) Delete(ctx context.Context, id int) error {
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.tournamentRepo.SoftDelete(ctx, tx, id); err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		return s.matchRepo.SoftDeleteByTournament(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "tournament deleted", slog.Int("tournament_id", id))
	return nil
}

// Close archives a fully decided tournament. It refuses while any round
// or any live match is still unfinalized.
func (s *tournamentService) Close(ctx context.Context, id, closedBy int) (*models.CloseTournamentResult, error) {
	var result models.CloseTournamentResult
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.ClosedAt != nil {
			return ErrTournamentAlreadyClosed
		}

		totalRounds, err := s.roundRepo.CountByTournament(ctx, tx, id)
		if err != nil {
			return err
		}
		if totalRounds == 0 {
			return ErrTournamentHasNoRounds
		}
		unfinalized, err := s.roundRepo.CountUnfinalizedByTournament(ctx, tx, id)
		if err != nil {
			return err
		}
		if unfinalized > 0 {
			return fmt.Errorf("%w: %d of %d", ErrTournamentRoundsUnfinalized, unfinalized, totalRounds)
		}
		pending, err := s.matchRepo.CountPendingByTournament(ctx, tx, id)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d still pending", ErrTournamentMatchesPending, pending)
		}

		if err := s.tournamentRepo.SetClosed(ctx, tx, id, time.Now(), closedBy); err != nil {
			return err
		}

		totalMatches, err := s.matchRepo.CountByTournament(ctx, tx, id)
		if err != nil {
			return err
		}
		totalParticipants, err := s.matchRepo.CountDistinctPlayers(ctx, tx, id)
		if err != nil {
			return err
		}
		result = models.CloseTournamentResult{
			TotalRounds:       totalRounds,
			TotalMatches:      totalMatches,
			TotalParticipants: totalParticipants,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament closed",
		slog.Int("tournament_id", id),
		slog.Int("closed_by", closedBy),
		slog.Int("total_rounds", result.TotalRounds),
		slog.Int("total_matches", result.TotalMatches),
	)

	room := brackets.TournamentRoom(id)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventTournamentClosed,
		Payload: result,
		RoomID:  room,
	})
	return &result, nil
}

// Reopen clears the closure marks. The restored status defaults to active
// unless the caller picks one.
func (s *tournamentService) Reopen(ctx context.Context, id int, status *models.TournamentStatus) (*models.Tournament, error) {
	target := models.TournamentStatusActive
	if status != nil {
		switch *status {
		case models.TournamentStatusDraft, models.TournamentStatusActive, models.TournamentStatusArchived:
			target = *status
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *status)
		}
	}

	var tournament *models.Tournament
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.ClosedAt == nil {
			return ErrTournamentNotClosed
		}
		if err := s.tournamentRepo.ClearClosed(ctx, tx, id, target); err != nil {
			return err
		}
		tournament.ClosedAt = nil
		tournament.ClosedBy = nil
		tournament.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament reopened",
		slog.Int("tournament_id", id),
		slog.String("status", string(target)),
	)

	room := brackets.TournamentRoom(id)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventTournamentReopened,
		Payload: tournament,
		RoomID:  room,
	})
	return tournament, nil
}

// UploadLogo stores the tournament logo and records its storage key.
// A previous logo is removed after the new key is saved.
func (s *tournamentService) UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("tournaments/%d/logo%s", id, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	oldKey := tournament.LogoKey
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &result.Key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous logo",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	tournament.LogoKey = &result.Key
	populateTournamentLogoURL(tournament, s.uploader)
	return tournament, nil
}
