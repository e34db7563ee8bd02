package models

import "time"

// PickStatus distinguishes saved-but-unsubmitted picks from submitted ones.
// Drafts are promoted to submitted when the round's submission window closes.
type PickStatus string

const (
	PickStatusDraft     PickStatus = "draft"
	PickStatusSubmitted PickStatus = "submitted"
)

// Pick is one user's prediction for one match: the winner and, optionally,
// the exact set score from the winner's perspective.
type Pick struct {
	ID      int `json:"id"`
	UserID  int `json:"user_id"`
	MatchID int `json:"match_id"`

	PredictedWinner   string `json:"predicted_winner"`
	PredictedSetsWon  *int   `json:"predicted_sets_won,omitempty"`
	PredictedSetsLost *int   `json:"predicted_sets_lost,omitempty"`

	Status PickStatus `json:"status"`

	// Points is nil until the match is finalized and scored. Retirement
	// matches leave it nil (voided), an unfinalize resets it to nil.
	Points *int `json:"points,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmitPickInput is the user-facing payload for creating or updating a pick.
type SubmitPickInput struct {
	PredictedWinner   string `json:"predicted_winner"`
	PredictedSetsWon  *int   `json:"predicted_sets_won,omitempty"`
	PredictedSetsLost *int   `json:"predicted_sets_lost,omitempty"`
	Draft             bool   `json:"draft"`
}

// LeaderboardEntry is one row of the points standings.
type LeaderboardEntry struct {
	UserID      int    `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
	ScoredPicks int    `json:"scored_picks"`
}
