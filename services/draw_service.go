package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
)

type DrawService interface {
	CommitDraw(ctx context.Context, input models.CommitDrawInput) (*models.Tournament, error)
}

type drawService struct {
	tx             repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	roundRepo      repositories.RoundRepository
	matchRepo      repositories.MatchRepository
	hub            RoomBroadcaster
	logger         *slog.Logger
}

func NewDrawService(
	tx repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	hub RoomBroadcaster,
	logger *slog.Logger,
) DrawService {
	return &drawService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		roundRepo:      roundRepo,
		matchRepo:      matchRepo,
		hub:            hub,
		logger:         logger,
	}
}

// stagedDraw is a fully validated draw, normalized and ready to insert.
// Everything in it is computed before the transaction opens.
type stagedDraw struct {
	tournament  *models.Tournament
	rounds      []*models.Round
	matches     [][]*models.Match
	staged      []brackets.StagedRound
	activeRound int
	byes        int
	results     int
}

// CommitDraw creates a tournament together with its whole bracket in a
// single transaction. Matches with exactly one BYE side or a completed
// result in the parsed draw are finalized immediately, their winners are
// advanced by the grouped advancement plan, and every round that ends up
// without pending matches is marked finalized.
func (s *drawService) CommitDraw(ctx context.Context, input models.CommitDrawInput) (*models.Tournament, error) {
	stage, err := s.stageDraw(input)
	if err != nil {
		return nil, err
	}

	var replacedID int
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		existing, err := s.tournamentRepo.GetByNameAndYear(ctx, tx, stage.tournament.Name, stage.tournament.Year)
		switch {
		case err == nil:
			if !input.OverwriteExisting {
				return fmt.Errorf("%w: %q (%d)", ErrDrawAlreadyCommitted, existing.Name, existing.Year)
			}
			if err := s.tournamentRepo.SoftDelete(ctx, tx, existing.ID); err != nil {
				return err
			}
			if err := s.matchRepo.SoftDeleteByTournament(ctx, tx, existing.ID); err != nil {
				return err
			}
			replacedID = existing.ID
		case errors.Is(err, repositories.ErrTournamentNotFound):
		default:
			return err
		}

		if err := s.tournamentRepo.Create(ctx, tx, stage.tournament); err != nil {
			if errors.Is(err, repositories.ErrTournamentNameConflict) {
				return ErrTournamentNameConflict
			}
			return err
		}

		roundIDByNumber := make(map[int]int, len(stage.rounds))
		for _, round := range stage.rounds {
			round.TournamentID = stage.tournament.ID
		}
		if err := s.roundRepo.CreateBatch(ctx, tx, stage.rounds); err != nil {
			return err
		}
		for _, round := range stage.rounds {
			roundIDByNumber[round.RoundNumber] = round.ID
		}

		var flat []*models.Match
		for i, roundMatches := range stage.matches {
			for _, m := range roundMatches {
				m.TournamentID = stage.tournament.ID
				m.RoundID = stage.rounds[i].ID
				flat = append(flat, m)
			}
		}
		if err := s.matchRepo.CreateBatch(ctx, tx, flat); err != nil {
			return err
		}

		plan, err := brackets.BuildAdvancementPlan(stage.staged)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBracketSlotMissing, err)
		}
		for _, group := range plan {
			if len(group.Assignments) == 0 {
				continue
			}
			roundID, ok := roundIDByNumber[group.RoundNumber]
			if !ok {
				return fmt.Errorf("%w: round %d not created", ErrBracketSlotMissing, group.RoundNumber)
			}
			if err := s.matchRepo.BulkAssignSlots(ctx, tx, roundID, group.Assignments); err != nil {
				if errors.Is(err, repositories.ErrMatchNotFound) {
					return fmt.Errorf("%w: round %d", ErrBracketSlotMissing, group.RoundNumber)
				}
				return err
			}
		}

		for _, round := range stage.rounds {
			pending, err := s.matchRepo.CountPendingByRound(ctx, tx, round.ID)
			if err != nil {
				return err
			}
			if pending == 0 {
				if err := s.roundRepo.SetFinalized(ctx, tx, round.ID, true); err != nil {
					return err
				}
				round.IsFinalized = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	totalMatches := 0
	for _, roundMatches := range stage.matches {
		totalMatches += len(roundMatches)
	}
	s.logger.InfoContext(ctx, "draw committed",
		slog.Int("tournament_id", stage.tournament.ID),
		slog.String("name", stage.tournament.Name),
		slog.Int("year", stage.tournament.Year),
		slog.Int("rounds", len(stage.rounds)),
		slog.Int("matches", totalMatches),
		slog.Int("byes", stage.byes),
		slog.Int("prerecorded_results", stage.results),
		slog.Int("replaced_tournament_id", replacedID),
	)

	room := brackets.TournamentRoom(stage.tournament.ID)
	s.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    brackets.EventBracketUpdated,
		Payload: stage.tournament,
		RoomID:  room,
	})
	return stage.tournament, nil
}

func (s *drawService) stageDraw(input models.CommitDrawInput) (*stagedDraw, error) {
	name := strings.TrimSpace(input.Draw.Name)
	if name == "" {
		return nil, ErrTournamentNameEmpty
	}
	if input.Draw.Year < minTournamentYear || input.Draw.Year > maxTournamentYear {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, input.Draw.Year)
	}
	if !models.ValidFormat(input.Format) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, input.Format)
	}
	if len(input.Draw.Rounds) == 0 {
		return nil, fmt.Errorf("%w: draw has no rounds", ErrDrawStructureInvalid)
	}

	parsedRounds := make([]models.ParsedRound, len(input.Draw.Rounds))
	copy(parsedRounds, input.Draw.Rounds)
	sort.Slice(parsedRounds, func(i, j int) bool {
		return parsedRounds[i].RoundNumber < parsedRounds[j].RoundNumber
	})

	stage := &stagedDraw{
		tournament: &models.Tournament{
			Name:    name,
			Year:    input.Draw.Year,
			Surface: input.Draw.Surface,
			AtpURL:  input.AtpURL,
			Format:  input.Format,
			Status:  models.TournamentStatusActive,
		},
		rounds:  make([]*models.Round, 0, len(parsedRounds)),
		matches: make([][]*models.Match, 0, len(parsedRounds)),
		staged:  make([]brackets.StagedRound, 0, len(parsedRounds)),
	}

	for i, pr := range parsedRounds {
		if pr.RoundNumber != i+1 {
			return nil, fmt.Errorf("%w: round numbers must run 1..%d, got %d at position %d",
				ErrDrawStructureInvalid, len(parsedRounds), pr.RoundNumber, i+1)
		}
		if len(pr.Matches) == 0 {
			return nil, fmt.Errorf("%w: round %d has no matches", ErrDrawStructureInvalid, pr.RoundNumber)
		}
		if i > 0 {
			expected := (len(parsedRounds[i-1].Matches) + 1) / 2
			if len(pr.Matches) != expected {
				return nil, fmt.Errorf("%w: round %d must have %d matches to receive round %d winners, got %d",
					ErrDrawStructureInvalid, pr.RoundNumber, expected, pr.RoundNumber-1, len(pr.Matches))
			}
		}

		roundName := strings.TrimSpace(pr.Name)
		if roundName == "" {
			roundName = fmt.Sprintf("Round %d", pr.RoundNumber)
		}
		stage.rounds = append(stage.rounds, &models.Round{
			RoundNumber: pr.RoundNumber,
			Name:        roundName,
		})

		parsedMatches := make([]models.ParsedMatch, len(pr.Matches))
		copy(parsedMatches, pr.Matches)
		sort.Slice(parsedMatches, func(a, b int) bool {
			return parsedMatches[a].MatchNumber < parsedMatches[b].MatchNumber
		})

		roundMatches := make([]*models.Match, 0, len(parsedMatches))
		stagedMatches := make([]brackets.StagedMatch, 0, len(parsedMatches))
		for j, pm := range parsedMatches {
			if pm.MatchNumber != j+1 {
				return nil, fmt.Errorf("%w: round %d match numbers must run 1..%d, got %d at position %d",
					ErrDrawStructureInvalid, pr.RoundNumber, len(parsedMatches), pm.MatchNumber, j+1)
			}
			match, err := s.stageMatch(input.Format, pm)
			if err != nil {
				return nil, fmt.Errorf("round %d match %d: %w", pr.RoundNumber, pm.MatchNumber, err)
			}
			if match.IsBye {
				stage.byes++
			} else if match.Status == models.MatchStatusFinalized {
				stage.results++
			}
			roundMatches = append(roundMatches, match)

			staged := brackets.StagedMatch{
				MatchNumber: match.MatchNumber,
				Player1Name: match.Player1Name,
				Player1Seed: match.Player1Seed,
				Player2Name: match.Player2Name,
				Player2Seed: match.Player2Seed,
				Finalized:   match.Status == models.MatchStatusFinalized,
			}
			if match.WinnerName != nil {
				staged.WinnerName = *match.WinnerName
			}
			stagedMatches = append(stagedMatches, staged)
		}
		stage.matches = append(stage.matches, roundMatches)
		stage.staged = append(stage.staged, brackets.StagedRound{
			RoundNumber: pr.RoundNumber,
			Matches:     stagedMatches,
		})
	}

	stage.activeRound = stage.rounds[len(stage.rounds)-1].RoundNumber
	for i, roundMatches := range stage.matches {
		hasPending := false
		for _, m := range roundMatches {
			if m.Status == models.MatchStatusPending {
				hasPending = true
				break
			}
		}
		if hasPending {
			stage.activeRound = stage.rounds[i].RoundNumber
			break
		}
	}
	for _, round := range stage.rounds {
		round.IsActive = round.RoundNumber == stage.activeRound
	}
	return stage, nil
}

// stageMatch normalizes one parsed match. Blank names become TBD, a
// single BYE side finalizes the match for the opponent, and a parsed
// result must obey the same winner and score rules as a manual finalize.
func (s *drawService) stageMatch(format models.TournamentFormat, pm models.ParsedMatch) (*models.Match, error) {
	name1, seed1 := brackets.NormalizeSlot(pm.Player1Name, pm.Player1Seed)
	name2, seed2 := brackets.NormalizeSlot(pm.Player2Name, pm.Player2Seed)
	bye1, bye2 := brackets.IsBye(name1), brackets.IsBye(name2)

	if bye1 && bye2 {
		return nil, ErrBothPlayersBye
	}
	if (bye1 && brackets.IsTBD(name2)) || (bye2 && brackets.IsTBD(name1)) {
		return nil, ErrByeAgainstPlaceholder
	}

	match := &models.Match{
		MatchNumber: pm.MatchNumber,
		Player1Name: name1,
		Player1Seed: seed1,
		Player2Name: name2,
		Player2Seed: seed2,
		Status:      models.MatchStatusPending,
	}

	switch {
	case bye1 || bye2:
		winner := name1
		if bye1 {
			winner = name2
		}
		if pm.WinnerName != nil && brackets.NormalizeName(*pm.WinnerName) != winner {
			return nil, fmt.Errorf("%w: %q cannot win a bye for %q", ErrWinnerNotInMatch, *pm.WinnerName, winner)
		}
		match.Status = models.MatchStatusFinalized
		match.WinnerName = &winner
		match.IsBye = true

	case pm.WinnerName != nil:
		winner := brackets.NormalizeName(*pm.WinnerName)
		if brackets.IsTBD(winner) {
			return nil, ErrWinnerUndecided
		}
		if winner != name1 && winner != name2 {
			return nil, fmt.Errorf("%w: %q", ErrWinnerNotInMatch, winner)
		}
		if pm.SetsWon == nil || pm.SetsLost == nil {
			return nil, fmt.Errorf("%w: result for %q is missing set counts", ErrInvalidScoreShape, winner)
		}
		if err := validateScoreShape(*pm.SetsWon, *pm.SetsLost); err != nil {
			return nil, err
		}
		if err := validateScoreForFormat(format, *pm.SetsWon); err != nil {
			return nil, err
		}
		match.Status = models.MatchStatusFinalized
		match.WinnerName = &winner
		match.SetsWon = pm.SetsWon
		match.SetsLost = pm.SetsLost
		match.FinalScore = pm.FinalScore
		match.IsRetirement = pm.IsRetirement
	}
	return match, nil
}
