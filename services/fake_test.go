package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/grandstand-picks/grandstand/brackets"
	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/repositories"
	"github.com/grandstand-picks/grandstand/storage"
)

// Function-field fakes for everything the services depend on. A method
// delegates to its field when set and falls back to a neutral default
// otherwise, so a test only wires the calls it cares about.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxRunner runs the transactional function directly, with a nil
// executor. The fake repositories never touch it.
type fakeTxRunner struct {
	beginErr error
	calls    int
}

func (f *fakeTxRunner) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) error {
	f.calls++
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(nil)
}

// fakeBroadcaster records every room broadcast for assertions.
type fakeBroadcaster struct {
	messages []brackets.WebSocketMessage
}

func (f *fakeBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	if msg, ok := message.(brackets.WebSocketMessage); ok {
		f.messages = append(f.messages, msg)
		return
	}
	f.messages = append(f.messages, brackets.WebSocketMessage{Payload: message, RoomID: roomID})
}

func (f *fakeBroadcaster) eventTypes() []string {
	types := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		types = append(types, m.Type)
	}
	return types
}

type fakeTournamentRepo struct {
	CreateFn           func(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error
	GetByIDFn          func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error)
	GetByNameAndYearFn func(ctx context.Context, exec repositories.SQLExecutor, name string, year int) (*models.Tournament, error)
	ListFn             func(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateFn           func(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error
	UpdateStatusFn     func(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error
	SetClosedFn        func(ctx context.Context, exec repositories.SQLExecutor, id int, closedAt time.Time, closedBy int) error
	ClearClosedFn      func(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error
	UpdateLogoKeyFn    func(ctx context.Context, tournamentID int, logoKey *string) error
	SoftDeleteFn       func(ctx context.Context, exec repositories.SQLExecutor, id int) error
}

func (f *fakeTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error {
	if f.CreateFn != nil {
		return f.CreateFn(ctx, exec, tournament)
	}
	return nil
}

func (f *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, exec, id)
	}
	return nil, repositories.ErrTournamentNotFound
}

func (f *fakeTournamentRepo) GetByNameAndYear(ctx context.Context, exec repositories.SQLExecutor, name string, year int) (*models.Tournament, error) {
	if f.GetByNameAndYearFn != nil {
		return f.GetByNameAndYearFn(ctx, exec, name, year)
	}
	return nil, repositories.ErrTournamentNotFound
}

func (f *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if f.ListFn != nil {
		return f.ListFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeTournamentRepo) Update(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error {
	if f.UpdateFn != nil {
		return f.UpdateFn(ctx, exec, tournament)
	}
	return nil
}

func (f *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	if f.UpdateStatusFn != nil {
		return f.UpdateStatusFn(ctx, exec, id, status)
	}
	return nil
}

func (f *fakeTournamentRepo) SetClosed(ctx context.Context, exec repositories.SQLExecutor, id int, closedAt time.Time, closedBy int) error {
	if f.SetClosedFn != nil {
		return f.SetClosedFn(ctx, exec, id, closedAt, closedBy)
	}
	return nil
}

func (f *fakeTournamentRepo) ClearClosed(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	if f.ClearClosedFn != nil {
		return f.ClearClosedFn(ctx, exec, id, status)
	}
	return nil
}

func (f *fakeTournamentRepo) UpdateLogoKey(ctx context.Context, tournamentID int, logoKey *string) error {
	if f.UpdateLogoKeyFn != nil {
		return f.UpdateLogoKeyFn(ctx, tournamentID, logoKey)
	}
	return nil
}

func (f *fakeTournamentRepo) SoftDelete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if f.SoftDeleteFn != nil {
		return f.SoftDeleteFn(ctx, exec, id)
	}
	return nil
}

type fakeRoundRepo struct {
	CreateBatchFn                  func(ctx context.Context, exec repositories.SQLExecutor, rounds []*models.Round) error
	GetByIDFn                      func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Round, error)
	GetByTournamentAndNumberFn     func(ctx context.Context, exec repositories.SQLExecutor, tournamentID, roundNumber int) (*models.Round, error)
	ListByTournamentFn             func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Round, error)
	CountByTournamentFn            func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error)
	CountUnfinalizedByTournamentFn func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error)
	SetFinalizedFn                 func(ctx context.Context, exec repositories.SQLExecutor, id int, finalized bool) error
	SetActiveRoundFn               func(ctx context.Context, exec repositories.SQLExecutor, tournamentID, roundNumber int) error
	CloseSubmissionsFn             func(ctx context.Context, exec repositories.SQLExecutor, id int, closedBy int, closedAt time.Time) error
	ReopenSubmissionsFn            func(ctx context.Context, exec repositories.SQLExecutor, id int) error
	DeleteByTournamentFn           func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error
}

func (f *fakeRoundRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, rounds []*models.Round) error {
	if f.CreateBatchFn != nil {
		return f.CreateBatchFn(ctx, exec, rounds)
	}
	return nil
}

func (f *fakeRoundRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Round, error) {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, exec, id)
	}
	return nil, repositories.ErrRoundNotFound
}

func (f *fakeRoundRepo) GetByTournamentAndNumber(ctx context.Context, exec repositories.SQLExecutor, tournamentID, roundNumber int) (*models.Round, error) {
	if f.GetByTournamentAndNumberFn != nil {
		return f.GetByTournamentAndNumberFn(ctx, exec, tournamentID, roundNumber)
	}
	return nil, repositories.ErrRoundNotFound
}

func (f *fakeRoundRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Round, error) {
	if f.ListByTournamentFn != nil {
		return f.ListByTournamentFn(ctx, exec, tournamentID)
	}
	return nil, nil
}

func (f *fakeRoundRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	if f.CountByTournamentFn != nil {
		return f.CountByTournamentFn(ctx, exec, tournamentID)
	}
	return 0, nil
}

func (f *fakeRoundRepo) CountUnfinalizedByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	if f.CountUnfinalizedByTournamentFn != nil {
		return f.CountUnfinalizedByTournamentFn(ctx, exec, tournamentID)
	}
	return 0, nil
}

func (f *fakeRoundRepo) SetFinalized(ctx context.Context, exec repositories.SQLExecutor, id int, finalized bool) error {
	if f.SetFinalizedFn != nil {
		return f.SetFinalizedFn(ctx, exec, id, finalized)
	}
	return nil
}

func (f *fakeRoundRepo) SetActiveRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID, roundNumber int) error {
	if f.SetActiveRoundFn != nil {
		return f.SetActiveRoundFn(ctx, exec, tournamentID, roundNumber)
	}
	return nil
}

func (f *fakeRoundRepo) CloseSubmissions(ctx context.Context, exec repositories.SQLExecutor, id int, closedBy int, closedAt time.Time) error {
	if f.CloseSubmissionsFn != nil {
		return f.CloseSubmissionsFn(ctx, exec, id, closedBy, closedAt)
	}
	return nil
}

func (f *fakeRoundRepo) ReopenSubmissions(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if f.ReopenSubmissionsFn != nil {
		return f.ReopenSubmissionsFn(ctx, exec, id)
	}
	return nil
}

func (f *fakeRoundRepo) DeleteByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	if f.DeleteByTournamentFn != nil {
		return f.DeleteByTournamentFn(ctx, exec, tournamentID)
	}
	return nil
}

type fakeMatchRepo struct {
	CreateBatchFn              func(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error
	GetByIDFn                  func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error)
	GetByIDForUpdateFn         func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error)
	GetByRoundAndNumberFn      func(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber int) (*models.Match, error)
	ListByRoundFn              func(ctx context.Context, exec repositories.SQLExecutor, roundID int) ([]models.Match, error)
	ListByTournamentFn         func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Match, error)
	UpdateResultFn             func(ctx context.Context, exec repositories.SQLExecutor, id int, winnerName string, setsWon, setsLost int, finalScore *string, isRetirement bool) error
	ClearResultFn              func(ctx context.Context, exec repositories.SQLExecutor, id int) error
	AssignSlotFn               func(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber, slot int, playerName string, playerSeed *int) error
	BulkAssignSlotsFn          func(ctx context.Context, exec repositories.SQLExecutor, roundID int, assignments []brackets.SlotAssignment) error
	ClearSlotFn                func(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber, slot int) error
	CountByRoundFn             func(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error)
	CountPendingByRoundFn      func(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error)
	CountPendingByTournamentFn func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error)
	CountByTournamentFn        func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error)
	CountDistinctPlayersFn     func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error)
	SoftDeleteByTournamentFn   func(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error
}

func (f *fakeMatchRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	if f.CreateBatchFn != nil {
		return f.CreateBatchFn(ctx, exec, matches)
	}
	return nil
}

func (f *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, exec, id)
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	if f.GetByIDForUpdateFn != nil {
		return f.GetByIDForUpdateFn(ctx, exec, id)
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) GetByRoundAndNumber(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber int) (*models.Match, error) {
	if f.GetByRoundAndNumberFn != nil {
		return f.GetByRoundAndNumberFn(ctx, exec, roundID, matchNumber)
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) ListByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) ([]models.Match, error) {
	if f.ListByRoundFn != nil {
		return f.ListByRoundFn(ctx, exec, roundID)
	}
	return nil, nil
}

func (f *fakeMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]models.Match, error) {
	if f.ListByTournamentFn != nil {
		return f.ListByTournamentFn(ctx, exec, tournamentID)
	}
	return nil, nil
}

func (f *fakeMatchRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, id int, winnerName string, setsWon, setsLost int, finalScore *string, isRetirement bool) error {
	if f.UpdateResultFn != nil {
		return f.UpdateResultFn(ctx, exec, id, winnerName, setsWon, setsLost, finalScore, isRetirement)
	}
	return nil
}

func (f *fakeMatchRepo) ClearResult(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if f.ClearResultFn != nil {
		return f.ClearResultFn(ctx, exec, id)
	}
	return nil
}

func (f *fakeMatchRepo) AssignSlot(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber, slot int, playerName string, playerSeed *int) error {
	if f.AssignSlotFn != nil {
		return f.AssignSlotFn(ctx, exec, roundID, matchNumber, slot, playerName, playerSeed)
	}
	return nil
}

func (f *fakeMatchRepo) BulkAssignSlots(ctx context.Context, exec repositories.SQLExecutor, roundID int, assignments []brackets.SlotAssignment) error {
	if f.BulkAssignSlotsFn != nil {
		return f.BulkAssignSlotsFn(ctx, exec, roundID, assignments)
	}
	return nil
}

func (f *fakeMatchRepo) ClearSlot(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber, slot int) error {
	if f.ClearSlotFn != nil {
		return f.ClearSlotFn(ctx, exec, roundID, matchNumber, slot)
	}
	return nil
}

func (f *fakeMatchRepo) CountByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error) {
	if f.CountByRoundFn != nil {
		return f.CountByRoundFn(ctx, exec, roundID)
	}
	return 0, nil
}

func (f *fakeMatchRepo) CountPendingByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error) {
	if f.CountPendingByRoundFn != nil {
		return f.CountPendingByRoundFn(ctx, exec, roundID)
	}
	return 0, nil
}

func (f *fakeMatchRepo) CountPendingByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	if f.CountPendingByTournamentFn != nil {
		return f.CountPendingByTournamentFn(ctx, exec, tournamentID)
	}
	return 0, nil
}

func (f *fakeMatchRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	if f.CountByTournamentFn != nil {
		return f.CountByTournamentFn(ctx, exec, tournamentID)
	}
	return 0, nil
}

func (f *fakeMatchRepo) CountDistinctPlayers(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	if f.CountDistinctPlayersFn != nil {
		return f.CountDistinctPlayersFn(ctx, exec, tournamentID)
	}
	return 0, nil
}

func (f *fakeMatchRepo) SoftDeleteByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	if f.SoftDeleteByTournamentFn != nil {
		return f.SoftDeleteByTournamentFn(ctx, exec, tournamentID)
	}
	return nil
}

type fakePickRepo struct {
	UpsertFn                     func(ctx context.Context, exec repositories.SQLExecutor, pick *models.Pick) error
	GetByUserAndMatchFn          func(ctx context.Context, exec repositories.SQLExecutor, userID, matchID int) (*models.Pick, error)
	ListByUserAndTournamentFn    func(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) ([]models.Pick, error)
	ListByUserAndRoundFn         func(ctx context.Context, exec repositories.SQLExecutor, userID, roundID int) ([]models.Pick, error)
	ListSubmittedByMatchFn       func(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.Pick, error)
	CountSubmittedByTournamentFn func(ctx context.Context, tournamentID int) (map[int]int, error)
	PromoteDraftsByRoundFn       func(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error)
	UpdatePointsFn               func(ctx context.Context, exec repositories.SQLExecutor, pickID int, points int) error
	ClearPointsByMatchFn         func(ctx context.Context, exec repositories.SQLExecutor, matchID int) error
	LeaderboardByTournamentFn    func(ctx context.Context, tournamentID int) ([]models.LeaderboardEntry, error)
	LeaderboardOverallFn         func(ctx context.Context) ([]models.LeaderboardEntry, error)
}

func (f *fakePickRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, pick *models.Pick) error {
	if f.UpsertFn != nil {
		return f.UpsertFn(ctx, exec, pick)
	}
	return nil
}

func (f *fakePickRepo) GetByUserAndMatch(ctx context.Context, exec repositories.SQLExecutor, userID, matchID int) (*models.Pick, error) {
	if f.GetByUserAndMatchFn != nil {
		return f.GetByUserAndMatchFn(ctx, exec, userID, matchID)
	}
	return nil, repositories.ErrPickNotFound
}

func (f *fakePickRepo) ListByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) ([]models.Pick, error) {
	if f.ListByUserAndTournamentFn != nil {
		return f.ListByUserAndTournamentFn(ctx, exec, userID, tournamentID)
	}
	return nil, nil
}

func (f *fakePickRepo) ListByUserAndRound(ctx context.Context, exec repositories.SQLExecutor, userID, roundID int) ([]models.Pick, error) {
	if f.ListByUserAndRoundFn != nil {
		return f.ListByUserAndRoundFn(ctx, exec, userID, roundID)
	}
	return nil, nil
}

func (f *fakePickRepo) ListSubmittedByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]models.Pick, error) {
	if f.ListSubmittedByMatchFn != nil {
		return f.ListSubmittedByMatchFn(ctx, exec, matchID)
	}
	return nil, nil
}

func (f *fakePickRepo) CountSubmittedByTournament(ctx context.Context, tournamentID int) (map[int]int, error) {
	if f.CountSubmittedByTournamentFn != nil {
		return f.CountSubmittedByTournamentFn(ctx, tournamentID)
	}
	return nil, nil
}

func (f *fakePickRepo) PromoteDraftsByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) (int, error) {
	if f.PromoteDraftsByRoundFn != nil {
		return f.PromoteDraftsByRoundFn(ctx, exec, roundID)
	}
	return 0, nil
}

func (f *fakePickRepo) UpdatePoints(ctx context.Context, exec repositories.SQLExecutor, pickID int, points int) error {
	if f.UpdatePointsFn != nil {
		return f.UpdatePointsFn(ctx, exec, pickID, points)
	}
	return nil
}

func (f *fakePickRepo) ClearPointsByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) error {
	if f.ClearPointsByMatchFn != nil {
		return f.ClearPointsByMatchFn(ctx, exec, matchID)
	}
	return nil
}

func (f *fakePickRepo) LeaderboardByTournament(ctx context.Context, tournamentID int) ([]models.LeaderboardEntry, error) {
	if f.LeaderboardByTournamentFn != nil {
		return f.LeaderboardByTournamentFn(ctx, tournamentID)
	}
	return nil, nil
}

func (f *fakePickRepo) LeaderboardOverall(ctx context.Context) ([]models.LeaderboardEntry, error) {
	if f.LeaderboardOverallFn != nil {
		return f.LeaderboardOverallFn(ctx)
	}
	return nil, nil
}

type fakeUserRepo struct {
	CreateFn     func(ctx context.Context, user *models.User) error
	GetByIDFn    func(ctx context.Context, id int) (*models.User, error)
	GetByEmailFn func(ctx context.Context, email string) (*models.User, error)
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if f.CreateFn != nil {
		return f.CreateFn(ctx, user)
	}
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, id)
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.GetByEmailFn != nil {
		return f.GetByEmailFn(ctx, email)
	}
	return nil, repositories.ErrUserNotFound
}

type fakeUploader struct {
	UploadFn       func(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error)
	DeleteFn       func(ctx context.Context, key string) error
	GetPublicURLFn func(key string) string
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if f.UploadFn != nil {
		return f.UploadFn(ctx, key, contentType, reader)
	}
	return &storage.UploadResult{Key: key}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, key)
	}
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	if f.GetPublicURLFn != nil {
		return f.GetPublicURLFn(key)
	}
	return "https://cdn.test/" + key
}
