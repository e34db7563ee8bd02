package brackets

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingDestination is reported when a finalized match has no match to
// advance its winner into. Well-formed brackets never produce it.
var ErrMissingDestination = errors.New("destination match missing in next round")

// StagedMatch is the in-memory form of a match during draw ingestion,
// before and during advancement planning.
type StagedMatch struct {
	MatchNumber int
	Player1Name string
	Player1Seed *int
	Player2Name string
	Player2Seed *int
	Finalized   bool
	WinnerName  string
}

// StagedRound groups the staged matches of one round.
type StagedRound struct {
	RoundNumber int
	Matches     []StagedMatch
}

// SlotAssignment is a single destination-slot write. A nil PlayerSeed
// means the destination seed is left untouched, not cleared.
type SlotAssignment struct {
	MatchNumber int
	Slot        int
	PlayerName  string
	PlayerSeed  *int
}

// RoundAssignments groups every slot write landing in one round so the
// storage layer can apply them in a bounded number of statements.
type RoundAssignments struct {
	RoundNumber int
	Assignments []SlotAssignment
}

// BuildAdvancementPlan walks the staged rounds in ascending order and,
// for every finalized match, records the slot write that advances its
// winner into the next round. Writes are applied to the staged rounds as
// the walk proceeds, so a winner advanced into round r carries the name
// and seed visible after all earlier rounds have been applied. The result
// is grouped by destination round, with assignments ordered by match
// number then slot, and applying it front to back is observably identical
// to advancing one winner at a time in round order. Finalized matches of
// the last round have nowhere to advance and are skipped.
func BuildAdvancementPlan(rounds []StagedRound) ([]RoundAssignments, error) {
	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].RoundNumber < rounds[j].RoundNumber
	})

	plan := make([]RoundAssignments, 0, len(rounds))
	for i := range rounds {
		if i == len(rounds)-1 {
			break
		}
		source := &rounds[i]
		dest := &rounds[i+1]

		assignments := make([]SlotAssignment, 0)
		for m := range source.Matches {
			match := &source.Matches[m]
			if !match.Finalized {
				continue
			}

			assignment := SlotAssignment{
				MatchNumber: DestinationMatchNumber(match.MatchNumber),
				Slot:        DestinationSlot(match.MatchNumber),
				PlayerName:  match.WinnerName,
				PlayerSeed:  match.seedOf(match.WinnerName),
			}
			if err := applyAssignment(dest, assignment); err != nil {
				return nil, fmt.Errorf("round %d match %d: %w", source.RoundNumber, match.MatchNumber, err)
			}
			assignments = append(assignments, assignment)
		}

		if len(assignments) == 0 {
			continue
		}
		sort.Slice(assignments, func(a, b int) bool {
			if assignments[a].MatchNumber != assignments[b].MatchNumber {
				return assignments[a].MatchNumber < assignments[b].MatchNumber
			}
			return assignments[a].Slot < assignments[b].Slot
		})
		plan = append(plan, RoundAssignments{RoundNumber: dest.RoundNumber, Assignments: assignments})
	}
	return plan, nil
}

func applyAssignment(round *StagedRound, assignment SlotAssignment) error {
	for i := range round.Matches {
		match := &round.Matches[i]
		if match.MatchNumber != assignment.MatchNumber {
			continue
		}
		switch assignment.Slot {
		case SlotPlayer1:
			match.Player1Name = assignment.PlayerName
			if assignment.PlayerSeed != nil {
				match.Player1Seed = assignment.PlayerSeed
			}
		case SlotPlayer2:
			match.Player2Name = assignment.PlayerName
			if assignment.PlayerSeed != nil {
				match.Player2Seed = assignment.PlayerSeed
			}
		}
		return nil
	}
	return ErrMissingDestination
}

func (m *StagedMatch) seedOf(playerName string) *int {
	if playerName == m.Player1Name {
		return m.Player1Seed
	}
	if playerName == m.Player2Name {
		return m.Player2Seed
	}
	return nil
}
