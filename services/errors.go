package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	// Missing resources
	ErrNotFound           = errors.New("requested resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrRoundNotFound      = errors.New("round not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPickNotFound       = errors.New("pick not found")

	// State errors: the record exists but is not in the required state
	ErrMatchAlreadyFinalized       = errors.New("match is already finalized")
	ErrMatchNotFinalized           = errors.New("match is not finalized")
	ErrMatchIsBye                  = errors.New("bye matches cannot be finalized or unfinalized")
	ErrMatchWinnerAdvanced         = errors.New("match winner already advanced into a finalized match")
	ErrMatchNotPickable            = errors.New("match is no longer open for picks")
	ErrRoundNotActive              = errors.New("round is not the active round")
	ErrSubmissionsAlreadyClosed    = errors.New("round submissions are already closed")
	ErrSubmissionsNotClosed        = errors.New("round submissions are not closed")
	ErrSubmissionsClosed           = errors.New("round submissions are closed")
	ErrTournamentAlreadyClosed     = errors.New("tournament is already closed")
	ErrTournamentNotClosed         = errors.New("tournament is not closed")
	ErrTournamentHasNoRounds       = errors.New("tournament has no rounds")
	ErrTournamentRoundsUnfinalized = errors.New("tournament has unfinalized rounds")
	ErrTournamentMatchesPending    = errors.New("tournament has pending matches")
	ErrDrawAlreadyCommitted        = errors.New("tournament already has a committed draw")

	// Validation errors
	ErrValidationFailed      = errors.New("validation failed")
	ErrWinnerNotInMatch      = errors.New("winner must be one of the match players")
	ErrWinnerUndecided       = errors.New("winner cannot be an undecided placeholder")
	ErrInvalidScoreShape     = errors.New("score shape is invalid")
	ErrScoreFormatMismatch   = errors.New("score does not match the tournament format")
	ErrBothPlayersBye        = errors.New("both players cannot be byes")
	ErrByeAgainstPlaceholder = errors.New("a bye cannot face an undecided slot")
	ErrDrawStructureInvalid  = errors.New("draw structure is invalid")
	ErrInvalidYear           = errors.New("tournament year is out of range")
	ErrInvalidFormat         = errors.New("tournament format must be bo3 or bo5")
	ErrTournamentNameEmpty   = errors.New("tournament name is required")

	// Integrity errors: well-formed brackets should make these impossible
	ErrBracketSlotMissing = errors.New("destination slot missing in next round")

	// Conflicts
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrTournamentNameConflict = errors.New("tournament name already exists for this year")

	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
