package models

import "time"

// Round groups the matches at one elimination depth (R128 ... Final).
type Round struct {
	ID           int    `json:"id"`
	TournamentID int    `json:"tournament_id"`
	RoundNumber  int    `json:"round_number"`
	Name         string `json:"name"`

	// IsActive marks the round currently open for picks. At most one round
	// per tournament is active; SetActiveRound flips the flag for the whole
	// tournament in a single statement so the booleans cannot drift.
	IsActive bool `json:"is_active"`

	// IsFinalized is set once every live match in the round is finalized.
	// Only an explicit reopen clears it again.
	IsFinalized bool `json:"is_finalized"`

	SubmissionsClosedAt *time.Time `json:"submissions_closed_at,omitempty"`
	SubmissionsClosedBy *int       `json:"submissions_closed_by,omitempty"`

	// Scheduling hints for the UI. The lifecycle logic never reads them.
	OpensAt  *time.Time `json:"opens_at,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Matches []Match `json:"matches,omitempty"`
}

// SubmissionsClosed reports whether picks are currently rejected for the round.
func (r *Round) SubmissionsClosed() bool {
	return r.SubmissionsClosedAt != nil
}

// CloseSubmissionsResult reports how many draft picks were promoted when the
// round's submission window closed.
type CloseSubmissionsResult struct {
	DraftsFinalized int `json:"drafts_finalized"`
}

// ReopenSubmissionsResult summarizes the round after its submission window is
// reopened, so the caller can warn that finalized matches stay locked.
type ReopenSubmissionsResult struct {
	PendingMatches   int `json:"pending_matches"`
	FinalizedMatches int `json:"finalized_matches"`
	TotalMatches     int `json:"total_matches"`
}
