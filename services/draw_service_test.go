package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
)

type drawServiceFixture struct {
	tx          *fakeTxRunner
	tournaments *fakeTournamentRepo
	rounds      *fakeRoundRepo
	matches     *fakeMatchRepo
	hub         *fakeBroadcaster
	svc         DrawService

	createdTournament *models.Tournament
	createdRounds     []*models.Round
	createdMatches    []*models.Match
	pendingByRound    map[int]int
	finalizedRounds   []int
	assignments       map[int][]brackets.SlotAssignment
}

func newDrawServiceFixture() *drawServiceFixture {
	f := &drawServiceFixture{
		tx:             &fakeTxRunner{},
		tournaments:    &fakeTournamentRepo{},
		rounds:         &fakeRoundRepo{},
		matches:        &fakeMatchRepo{},
		hub:            &fakeBroadcaster{},
		pendingByRound: map[int]int{},
		assignments:    map[int][]brackets.SlotAssignment{},
	}

	f.tournaments.CreateFn = func(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error {
		f.createdTournament = tournament
		tournament.ID = 7
		return nil
	}
	f.rounds.CreateBatchFn = func(ctx context.Context, exec repositories.SQLExecutor, rounds []*models.Round) error {
		f.createdRounds = rounds
		for i, r := range rounds {
			r.ID = 201 + i
		}
		return nil
	}
	f.matches.CreateBatchFn = func(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
		f.createdMatches = matches
		for i, m := range matches {
			m.ID = 301 + i
		}
		return nil
	}
	f.matches.CountPendingByRoundFn = func(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error) {
		return f.pendingByRound[roundID], nil
	}
	f.rounds.SetFinalizedFn = func(ctx context.Context, exec repositories.SQLExecutor, id int, finalized bool) error {
		if finalized {
			f.finalizedRounds = append(f.finalizedRounds, id)
		}
		return nil
	}
	f.matches.BulkAssignSlotsFn = func(ctx context.Context, exec repositories.SQLExecutor, roundID int, assignments []brackets.SlotAssignment) error {
		f.assignments[roundID] = assignments
		return nil
	}

	f.svc = NewDrawService(f.tx, f.tournaments, f.rounds, f.matches, f.hub, testLogger())
	return f
}

func TestCommitDraw_CreatesFullBracket(t *testing.T) {
	f := newDrawServiceFixture()
	f.pendingByRound = map[int]int{201: 2, 202: 1}

	input := models.CommitDrawInput{
		Format: models.FormatBestOfThree,
		AtpURL: strPtr("https://www.atptour.com/en/scores/current/monte-carlo/410/draws"),
		Draw: models.ParsedDraw{
			Name:    "Monte-Carlo Masters",
			Year:    2026,
			Surface: strPtr("clay"),
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Name: "Semifinals", Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "C. Alcaraz", Player1Seed: intPtr(2), Player2Name: "A. de Minaur"},
					{MatchNumber: 2, Player1Name: "S. Tsitsipas", Player2Name: "C. Ruud"},
				}},
				{RoundNumber: 2, Name: "Final", Matches: []models.ParsedMatch{
					{MatchNumber: 1},
				}},
			},
		},
	}

	tournament, err := f.svc.CommitDraw(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, 7, tournament.ID)
	require.Equal(t, "Monte-Carlo Masters", tournament.Name)
	require.Equal(t, 2026, tournament.Year)
	require.Equal(t, models.TournamentStatusActive, tournament.Status)
	require.Equal(t, strPtr("clay"), tournament.Surface)

	require.Len(t, f.createdRounds, 2)
	require.Equal(t, "Semifinals", f.createdRounds[0].Name)
	require.Equal(t, "Final", f.createdRounds[1].Name)
	require.Equal(t, 7, f.createdRounds[0].TournamentID)
	require.True(t, f.createdRounds[0].IsActive, "the first pending round opens for picks")
	require.False(t, f.createdRounds[1].IsActive)

	require.Len(t, f.createdMatches, 3)
	final := f.createdMatches[2]
	require.Equal(t, 202, final.RoundID)
	require.Equal(t, brackets.TBD, final.Player1Name)
	require.Equal(t, brackets.TBD, final.Player2Name)
	for _, m := range f.createdMatches {
		require.Equal(t, models.MatchStatusPending, m.Status)
		require.Equal(t, 7, m.TournamentID)
	}

	require.Empty(t, f.assignments, "an undecided draw advances nobody")
	require.Empty(t, f.finalizedRounds)
	require.Equal(t, []string{brackets.EventBracketUpdated}, f.hub.eventTypes())
}

func TestCommitDraw_ByesAndRecordedResultsAdvanceWinners(t *testing.T) {
	f := newDrawServiceFixture()
	f.pendingByRound = map[int]int{201: 2, 202: 2, 203: 1}

	input := models.CommitDrawInput{
		Format: models.FormatBestOfThree,
		Draw: models.ParsedDraw{
			Name: "Halle Open",
			Year: 2026,
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "J. Sinner", Player1Seed: intPtr(1), Player2Name: "BYE"},
					{MatchNumber: 2, Player1Name: "M. Arnaldi", Player2Name: "A. Fils",
						WinnerName: strPtr("A. Fils"), SetsWon: intPtr(2), SetsLost: intPtr(0), FinalScore: strPtr("6-4 6-4")},
					{MatchNumber: 3, Player1Name: "L. Musetti", Player2Name: "L. Sonego"},
					{MatchNumber: 4, Player1Name: "F. Tiafoe", Player2Name: "B. Shelton", Player2Seed: intPtr(4)},
				}},
				{RoundNumber: 2, Matches: []models.ParsedMatch{
					{MatchNumber: 1},
					{MatchNumber: 2},
				}},
				{RoundNumber: 3, Matches: []models.ParsedMatch{
					{MatchNumber: 1},
				}},
			},
		},
	}

	_, err := f.svc.CommitDraw(context.Background(), input)
	require.NoError(t, err)

	bye := f.createdMatches[0]
	require.True(t, bye.IsBye)
	require.Equal(t, models.MatchStatusFinalized, bye.Status)
	require.Equal(t, strPtr("J. Sinner"), bye.WinnerName)
	require.Nil(t, bye.SetsWon, "byes carry no score")

	recorded := f.createdMatches[1]
	require.False(t, recorded.IsBye)
	require.Equal(t, models.MatchStatusFinalized, recorded.Status)
	require.Equal(t, strPtr("A. Fils"), recorded.WinnerName)
	require.Equal(t, intPtr(2), recorded.SetsWon)
	require.Equal(t, strPtr("6-4 6-4"), recorded.FinalScore)

	// Both decided matches feed round 2 match 1 in one grouped write.
	require.Len(t, f.assignments, 1)
	require.Equal(t, []brackets.SlotAssignment{
		{MatchNumber: 1, Slot: brackets.SlotPlayer1, PlayerName: "J. Sinner", PlayerSeed: intPtr(1)},
		{MatchNumber: 1, Slot: brackets.SlotPlayer2, PlayerName: "A. Fils"},
	}, f.assignments[202])

	require.True(t, f.createdRounds[0].IsActive, "round 1 still has pending matches")
	require.Empty(t, f.finalizedRounds)
}

func TestCommitDraw_FullyDecidedRoundIsFinalized(t *testing.T) {
	f := newDrawServiceFixture()
	f.pendingByRound = map[int]int{201: 0, 202: 1}

	input := models.CommitDrawInput{
		Format: models.FormatBestOfThree,
		Draw: models.ParsedDraw{
			Name: "Rotterdam Open",
			Year: 2026,
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "BYE", Player2Name: "D. Medvedev", Player2Seed: intPtr(3)},
					{MatchNumber: 2, Player1Name: "A. Bublik", Player2Name: "T. Machac",
						WinnerName: strPtr("A. Bublik"), SetsWon: intPtr(2), SetsLost: intPtr(1)},
				}},
				{RoundNumber: 2, Matches: []models.ParsedMatch{
					{MatchNumber: 1},
				}},
			},
		},
	}

	_, err := f.svc.CommitDraw(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, []int{201}, f.finalizedRounds)
	require.False(t, f.createdRounds[0].IsActive)
	require.True(t, f.createdRounds[1].IsActive, "picks open on the first round that still has play")

	require.Equal(t, []brackets.SlotAssignment{
		{MatchNumber: 1, Slot: brackets.SlotPlayer1, PlayerName: "D. Medvedev", PlayerSeed: intPtr(3)},
		{MatchNumber: 1, Slot: brackets.SlotPlayer2, PlayerName: "A. Bublik"},
	}, f.assignments[202])
}

func TestCommitDraw_RefusedWhenAlreadyCommitted(t *testing.T) {
	f := newDrawServiceFixture()
	f.tournaments.GetByNameAndYearFn = func(ctx context.Context, exec repositories.SQLExecutor, name string, year int) (*models.Tournament, error) {
		return &models.Tournament{ID: 3, Name: name, Year: year}, nil
	}
	f.tournaments.CreateFn = func(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error {
		t.Fatal("no tournament may be created over an existing draw")
		return nil
	}

	_, err := f.svc.CommitDraw(context.Background(), models.CommitDrawInput{
		Format: models.FormatBestOfThree,
		Draw: models.ParsedDraw{
			Name: "Halle Open",
			Year: 2026,
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "J. Sinner", Player2Name: "A. Fils"},
				}},
			},
		},
	})
	require.ErrorIs(t, err, ErrDrawAlreadyCommitted)
}

func TestCommitDraw_OverwriteReplacesExistingTournament(t *testing.T) {
	f := newDrawServiceFixture()
	f.pendingByRound = map[int]int{201: 1}
	f.tournaments.GetByNameAndYearFn = func(ctx context.Context, exec repositories.SQLExecutor, name string, year int) (*models.Tournament, error) {
		return &models.Tournament{ID: 3, Name: name, Year: year}, nil
	}

	var removedTournament, removedMatches int
	f.tournaments.SoftDeleteFn = func(ctx context.Context, exec repositories.SQLExecutor, id int) error {
		removedTournament = id
		return nil
	}
	f.matches.SoftDeleteByTournamentFn = func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
		removedMatches = tournamentID
		return nil
	}

	tournament, err := f.svc.CommitDraw(context.Background(), models.CommitDrawInput{
		Format:            models.FormatBestOfThree,
		OverwriteExisting: true,
		Draw: models.ParsedDraw{
			Name: "Halle Open",
			Year: 2026,
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "J. Sinner", Player2Name: "A. Fils"},
				}},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, removedTournament)
	require.Equal(t, 3, removedMatches)
	require.Equal(t, 7, tournament.ID, "the replacement is a fresh tournament")
}

func TestCommitDraw_StructureRejections(t *testing.T) {
	valid := func() models.ParsedDraw {
		return models.ParsedDraw{
			Name: "Halle Open",
			Year: 2026,
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "J. Sinner", Player2Name: "A. Fils"},
					{MatchNumber: 2, Player1Name: "L. Musetti", Player2Name: "L. Sonego"},
				}},
				{RoundNumber: 2, Matches: []models.ParsedMatch{
					{MatchNumber: 1},
				}},
			},
		}
	}

	tests := []struct {
		name    string
		format  models.TournamentFormat
		mutate  func(*models.ParsedDraw)
		wantErr error
	}{
		{
			name:    "empty name",
			format:  models.FormatBestOfThree,
			mutate:  func(d *models.ParsedDraw) { d.Name = "  " },
			wantErr: ErrTournamentNameEmpty,
		},
		{
			name:    "year out of range",
			format:  models.FormatBestOfThree,
			mutate:  func(d *models.ParsedDraw) { d.Year = 1891 },
			wantErr: ErrInvalidYear,
		},
		{
			name:    "unknown format",
			format:  "bo9",
			mutate:  func(d *models.ParsedDraw) {},
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "no rounds",
			format:  models.FormatBestOfThree,
			mutate:  func(d *models.ParsedDraw) { d.Rounds = nil },
			wantErr: ErrDrawStructureInvalid,
		},
		{
			name:    "round numbers with a gap",
			format:  models.FormatBestOfThree,
			mutate:  func(d *models.ParsedDraw) { d.Rounds[1].RoundNumber = 3 },
			wantErr: ErrDrawStructureInvalid,
		},
		{
			name:    "round without matches",
			format:  models.FormatBestOfThree,
			mutate:  func(d *models.ParsedDraw) { d.Rounds[1].Matches = nil },
			wantErr: ErrDrawStructureInvalid,
		},
		{
			name:   "next round does not halve",
			format: models.FormatBestOfThree,
			mutate: func(d *models.ParsedDraw) {
				d.Rounds[1].Matches = append(d.Rounds[1].Matches, models.ParsedMatch{MatchNumber: 2})
			},
			wantErr: ErrDrawStructureInvalid,
		},
		{
			name:    "match numbers with a gap",
			format:  models.FormatBestOfThree,
			mutate:  func(d *models.ParsedDraw) { d.Rounds[0].Matches[1].MatchNumber = 5 },
			wantErr: ErrDrawStructureInvalid,
		},
		{
			name:   "both players bye",
			format: models.FormatBestOfThree,
			mutate: func(d *models.ParsedDraw) {
				d.Rounds[0].Matches[0].Player1Name = "BYE"
				d.Rounds[0].Matches[0].Player2Name = "bye"
			},
			wantErr: ErrBothPlayersBye,
		},
		{
			name:   "bye against an undecided slot",
			format: models.FormatBestOfThree,
			mutate: func(d *models.ParsedDraw) {
				d.Rounds[0].Matches[0].Player1Name = "BYE"
				d.Rounds[0].Matches[0].Player2Name = ""
			},
			wantErr: ErrByeAgainstPlaceholder,
		},
		{
			name:   "recorded winner not in the match",
			format: models.FormatBestOfThree,
			mutate: func(d *models.ParsedDraw) {
				d.Rounds[0].Matches[0].WinnerName = strPtr("N. Djokovic")
				d.Rounds[0].Matches[0].SetsWon = intPtr(2)
				d.Rounds[0].Matches[0].SetsLost = intPtr(0)
			},
			wantErr: ErrWinnerNotInMatch,
		},
		{
			name:   "recorded result without set counts",
			format: models.FormatBestOfThree,
			mutate: func(d *models.ParsedDraw) {
				d.Rounds[0].Matches[0].WinnerName = strPtr("J. Sinner")
			},
			wantErr: ErrInvalidScoreShape,
		},
		{
			name:   "recorded result against the format",
			format: models.FormatBestOfThree,
			mutate: func(d *models.ParsedDraw) {
				d.Rounds[0].Matches[0].WinnerName = strPtr("J. Sinner")
				d.Rounds[0].Matches[0].SetsWon = intPtr(3)
				d.Rounds[0].Matches[0].SetsLost = intPtr(1)
			},
			wantErr: ErrScoreFormatMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDrawServiceFixture()
			draw := valid()
			tt.mutate(&draw)

			_, err := f.svc.CommitDraw(context.Background(), models.CommitDrawInput{Format: tt.format, Draw: draw})
			require.ErrorIs(t, err, tt.wantErr)
			require.Zero(t, f.tx.calls, "a malformed draw is rejected before the transaction opens")
			require.Empty(t, f.hub.messages)
		})
	}
}

func TestCommitDraw_NormalizesSlots(t *testing.T) {
	f := newDrawServiceFixture()
	f.pendingByRound = map[int]int{201: 1}

	_, err := f.svc.CommitDraw(context.Background(), models.CommitDrawInput{
		Format: models.FormatBestOfThree,
		Draw: models.ParsedDraw{
			Name: "Basel Indoors",
			Year: 2026,
			Rounds: []models.ParsedRound{
				{RoundNumber: 1, Matches: []models.ParsedMatch{
					{MatchNumber: 1, Player1Name: "  F. Auger-Aliassime ", Player2Name: "   ", Player2Seed: intPtr(9)},
				}},
			},
		},
	})
	require.NoError(t, err)

	m := f.createdMatches[0]
	require.Equal(t, "F. Auger-Aliassime", m.Player1Name)
	require.Equal(t, brackets.TBD, m.Player2Name)
	require.Nil(t, m.Player2Seed, "a placeholder slot keeps no seed")
}
