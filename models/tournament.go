package models

import "time"

// TournamentFormat constrains valid set counts for match results.
type TournamentFormat string

const (
	FormatBestOfThree TournamentFormat = "bo3"
	FormatBestOfFive  TournamentFormat = "bo5"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentStatusDraft    TournamentStatus = "draft"
	TournamentStatusActive   TournamentStatus = "active"
	TournamentStatusArchived TournamentStatus = "archived"
)

// Tournament is one uploaded draw: a set of rounds, each a set of matches.
type Tournament struct {
	ID      int              `json:"id"`
	Name    string           `json:"name"`
	Year    int              `json:"year"`
	Surface *string          `json:"surface,omitempty"`
	AtpURL  *string          `json:"atp_url,omitempty"`
	Format  TournamentFormat `json:"format"`
	Status  TournamentStatus `json:"status"`

	// ClosedAt/ClosedBy are set when an admin closes the tournament after
	// every round is finalized. Reopening clears them.
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	ClosedBy *int       `json:"closed_by,omitempty"`

	LogoKey *string `json:"-"`
	LogoURL *string `json:"logo_url,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`

	Rounds []Round `json:"rounds,omitempty"`
}

// ValidFormat reports whether f is one of the supported tournament formats.
func ValidFormat(f TournamentFormat) bool {
	return f == FormatBestOfThree || f == FormatBestOfFive
}

// CloseTournamentResult is the summary returned when a tournament is closed.
type CloseTournamentResult struct {
	TotalRounds       int `json:"total_rounds"`
	TotalMatches      int `json:"total_matches"`
	TotalParticipants int `json:"total_participants"`
}
