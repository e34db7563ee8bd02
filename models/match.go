package models

import "time"

// MatchStatus mirrors the match_status ENUM in the database.
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusFinalized MatchStatus = "finalized"
)

// Match is one slot of a single-elimination bracket. Player names come
// straight from the uploaded draw; "TBD" marks a slot still waiting for a
// winner from the previous round, "BYE" marks a slot with no opponent.
type Match struct {
	ID           int `json:"id"`
	TournamentID int `json:"tournament_id"`
	RoundID      int `json:"round_id"`

	// MatchNumber is 1-based and contiguous within the round. Together with
	// the round number it fully determines where the winner advances to.
	MatchNumber int `json:"match_number"`

	Player1Name string `json:"player1_name"`
	Player2Name string `json:"player2_name"`
	Player1Seed *int   `json:"player1_seed,omitempty"`
	Player2Seed *int   `json:"player2_seed,omitempty"`

	Status     MatchStatus `json:"status"`
	WinnerName *string     `json:"winner_name,omitempty"`

	// FinalScore is the set-by-set line, e.g. "6-4,3-6,7-6(4)". SetsWon and
	// SetsLost are from the winner's perspective.
	FinalScore *string `json:"final_score,omitempty"`
	SetsWon    *int    `json:"sets_won,omitempty"`
	SetsLost   *int    `json:"sets_lost,omitempty"`

	// IsRetirement marks a match that ended early (retirement/walkover). The
	// match still finalizes and the winner still advances, but picks on it
	// are excluded from scoring.
	IsRetirement bool `json:"is_retirement"`

	// IsBye is true iff exactly one side of the draw slot was "BYE". Bye
	// matches are finalized at ingestion and never change state again.
	IsBye bool `json:"is_bye"`

	// PickCount is the number of submitted picks on the match. Populated
	// only by the bracket view, nil elsewhere.
	PickCount *int `json:"pick_count,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

// HasPlayer reports whether name equals one of the two player names.
func (m *Match) HasPlayer(name string) bool {
	return m.Player1Name == name || m.Player2Name == name
}

// SeedOf returns the seed recorded for the given player name, or nil when the
// player is unseeded or not part of the match.
func (m *Match) SeedOf(name string) *int {
	switch name {
	case m.Player1Name:
		return m.Player1Seed
	case m.Player2Name:
		return m.Player2Seed
	}
	return nil
}

// FinalizeMatchInput carries an admin result submission for a pending match.
type FinalizeMatchInput struct {
	WinnerName   string `json:"winner_name"`
	SetsWon      int    `json:"sets_won"`
	SetsLost     int    `json:"sets_lost"`
	FinalScore   string `json:"final_score"`
	IsRetirement bool   `json:"is_retirement"`
}
