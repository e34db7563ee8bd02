package models

// ParsedMatch is one match slot in an ingested draw before any
// normalization. Names may be empty when the draw page shows an
// undecided slot, "BYE" is accepted in any letter case. Draws scraped
// mid-tournament can carry a completed result.
type ParsedMatch struct {
	MatchNumber int    `json:"match_number"`
	Player1Name string `json:"player1_name"`
	Player1Seed *int   `json:"player1_seed,omitempty"`
	Player2Name string `json:"player2_name"`
	Player2Seed *int   `json:"player2_seed,omitempty"`

	WinnerName   *string `json:"winner_name,omitempty"`
	SetsWon      *int    `json:"sets_won,omitempty"`
	SetsLost     *int    `json:"sets_lost,omitempty"`
	FinalScore   *string `json:"final_score,omitempty"`
	IsRetirement bool    `json:"is_retirement,omitempty"`
}

// ParsedRound groups the matches of one round. RoundNumber starts at 1
// for the outermost round of the bracket.
type ParsedRound struct {
	RoundNumber int           `json:"round_number"`
	Name        string        `json:"name"`
	Matches     []ParsedMatch `json:"matches"`
}

// ParsedDraw is the full bracket of a tournament, usually scraped from a
// public draw page and committed in one transaction. Name and Year
// identify the tournament the commit creates.
type ParsedDraw struct {
	Name    string        `json:"name"`
	Year    int           `json:"year"`
	Surface *string       `json:"surface,omitempty"`
	Rounds  []ParsedRound `json:"rounds"`
}

// CommitDrawInput wraps a parsed draw with the tournament settings the
// commit applies alongside it.
type CommitDrawInput struct {
	Draw              ParsedDraw       `json:"draw"`
	Format            TournamentFormat `json:"format"`
	AtpURL            *string          `json:"atp_url,omitempty"`
	OverwriteExisting bool             `json:"overwrite_existing"`
}
