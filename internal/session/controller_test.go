package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/nreyes-dev/ttt-cli/internal/domain"
	"github.com/nreyes-dev/ttt-cli/internal/gamesapi"
	"github.com/nreyes-dev/ttt-cli/internal/identity"
)

// fakeTransport serves canned responses and can gate individual GetGame
// calls so tests can overlap completions deterministically.
type fakeTransport struct {
	mu sync.Mutex

	history    []domain.GameSummary
	historyErr error

	details    map[string]*domain.GameDetail
	getGameErr error

	createDetail *domain.GameDetail
	createErr    error

	moveDetail *domain.GameDetail
	moveErr    error

	gates map[string]chan struct{} // GetGame blocks until the game's gate closes

	historyCalls int
	moveCalls    int
	lastMoveX    int
	lastMoveY    int
	lastMoveGame string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		details: make(map[string]*domain.GameDetail),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeTransport) CreateGame(ctx context.Context) (*domain.GameDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	detail := *f.createDetail
	return &detail, nil
}

func (f *fakeTransport) GetGame(ctx context.Context, gameID string) (*domain.GameDetail, error) {
	f.mu.Lock()
	gate := f.gates[gameID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getGameErr != nil {
		return nil, f.getGameErr
	}
	g, ok := f.details[gameID]
	if !ok {
		return nil, gamesapi.ErrGameNotFound
	}
	detail := *g
	return &detail, nil
}

func (f *fakeTransport) SubmitMove(ctx context.Context, gameID string, x, y int) (*domain.GameDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveCalls++
	f.lastMoveGame, f.lastMoveX, f.lastMoveY = gameID, x, y
	if f.moveErr != nil {
		return nil, f.moveErr
	}
	detail := *f.moveDetail
	return &detail, nil
}

func (f *fakeTransport) GetHistory(ctx context.Context) ([]domain.GameSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]domain.GameSummary(nil), f.history...), nil
}

func ongoingDetail(id string) *domain.GameDetail {
	return &domain.GameDetail{
		GameID: id,
		Board: domain.Board{
			{".", ".", "."},
			{".", ".", "."},
			{".", ".", "."},
		},
		Result:       domain.ResultOngoing,
		HumanPlaysAs: "X",
	}
}

func summary(id string, createdAt int64) domain.GameSummary {
	return domain.GameSummary{GameID: id, CreatedAt: createdAt, Result: domain.ResultOngoing, HumanPlaysAs: "X"}
}

func newTestController(t *testing.T, tr *fakeTransport) (*Controller, *identity.MemStore) {
	t.Helper()
	ids := identity.NewMemStore()
	return NewController(tr, ids, nil), ids
}

func TestSelectionInvariants(t *testing.T) {
	tr := newFakeTransport()
	tr.details["g1"] = ongoingDetail("g1")
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.SelectGame(ctx, "g1"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	st := c.Snapshot()
	if st.SelectedGameID != "g1" || st.SelectedGame == nil || st.SelectedGame.GameID != "g1" {
		t.Fatalf("expected g1 selected with matching detail, got id=%q detail=%+v", st.SelectedGameID, st.SelectedGame)
	}

	if err := c.SelectGame(ctx, ""); err != nil {
		t.Fatalf("SelectGame(none): %v", err)
	}
	st = c.Snapshot()
	if st.SelectedGameID != "" || st.SelectedGame != nil {
		t.Fatalf("clearing the selection must clear the detail too: %+v", st)
	}
	if st.LoadingGame {
		t.Fatalf("loadingGame stuck after clearing selection")
	}
}

func TestStaleDetailDiscarded(t *testing.T) {
	tr := newFakeTransport()
	tr.details["a"] = ongoingDetail("a")
	tr.details["b"] = ongoingDetail("b")
	gate := make(chan struct{})
	tr.gates["a"] = gate
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.SelectGame(ctx, "a") }()

	// Wait until a's fetch is actually in flight (selection visible, no detail).
	for {
		st := c.Snapshot()
		if st.SelectedGameID == "a" && st.LoadingGame {
			break
		}
		runtime.Gosched()
	}

	if err := c.SelectGame(ctx, "b"); err != nil {
		t.Fatalf("SelectGame(b): %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("SelectGame(a): %v", err)
	}

	st := c.Snapshot()
	if st.SelectedGameID != "b" || st.SelectedGame == nil || st.SelectedGame.GameID != "b" {
		t.Fatalf("a's late completion clobbered b's detail: %+v", st)
	}
	if st.Err != nil {
		t.Fatalf("discarded completion must not surface an error: %v", st.Err)
	}
}

func TestHistoryFailureKeepsPriorList(t *testing.T) {
	tr := newFakeTransport()
	tr.history = []domain.GameSummary{summary("g1", 100), summary("g2", 200)}
	tr.details["g2"] = ongoingDetail("g2")
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.RefreshHistory(ctx, true); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if got := len(c.Snapshot().Games); got != 2 {
		t.Fatalf("expected 2 games, got %d", got)
	}

	tr.mu.Lock()
	tr.historyErr = errors.New("boom")
	tr.mu.Unlock()
	if err := c.RefreshHistory(ctx, false); err == nil {
		t.Fatalf("expected RefreshHistory to fail")
	}

	st := c.Snapshot()
	if len(st.Games) != 2 {
		t.Fatalf("failed refresh must not clear the prior list, got %d games", len(st.Games))
	}
	if st.Err == nil || st.Err.Kind != KindHistoryLoad {
		t.Fatalf("expected history-load error, got %v", st.Err)
	}
	if st.LoadingHistory {
		t.Fatalf("loadingHistory stuck after failure")
	}
}

func TestEmptyHistoryNormalized(t *testing.T) {
	tr := newFakeTransport()
	tr.historyErr = fmt.Errorf("wrapped: %w", gamesapi.ErrNoHistory)
	c, _ := newTestController(t, tr)

	if err := c.RefreshHistory(context.Background(), true); err != nil {
		t.Fatalf("no-history must not be an error: %v", err)
	}
	st := c.Snapshot()
	if len(st.Games) != 0 || st.SelectedGameID != "" || st.SelectedGame != nil {
		t.Fatalf("expected blank session, got %+v", st)
	}
	if st.Err != nil {
		t.Fatalf("no-history must not surface an error: %v", st.Err)
	}
	if st.LoadingHistory {
		t.Fatalf("loadingHistory stuck")
	}
}

func TestEmptyHistoryClearsSelection(t *testing.T) {
	tr := newFakeTransport()
	tr.history = []domain.GameSummary{summary("g1", 100)}
	tr.details["g1"] = ongoingDetail("g1")
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.RefreshHistory(ctx, true); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if c.Snapshot().SelectedGameID != "g1" {
		t.Fatalf("expected g1 auto-selected")
	}

	tr.mu.Lock()
	tr.history = nil
	tr.mu.Unlock()
	if err := c.RefreshHistory(ctx, false); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	st := c.Snapshot()
	if st.SelectedGameID != "" || st.SelectedGame != nil {
		t.Fatalf("empty history must clear selection and detail: %+v", st)
	}
}

func TestAutoSelectPicksMostRecent(t *testing.T) {
	tr := newFakeTransport()
	tr.history = []domain.GameSummary{summary("g1", 100), summary("g2", 200)}
	tr.details["g1"] = ongoingDetail("g1")
	tr.details["g2"] = ongoingDetail("g2")
	c, _ := newTestController(t, tr)

	if err := c.RefreshHistory(context.Background(), true); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	st := c.Snapshot()
	if st.SelectedGameID != "g2" {
		t.Fatalf("expected last entry g2 auto-selected, got %q", st.SelectedGameID)
	}
	if st.SelectedGame == nil || st.SelectedGame.GameID != "g2" {
		t.Fatalf("auto-select must load the detail: %+v", st.SelectedGame)
	}
}

func TestAutoSelectRespectsExistingSelection(t *testing.T) {
	tr := newFakeTransport()
	tr.history = []domain.GameSummary{summary("g1", 100), summary("g2", 200)}
	tr.details["g1"] = ongoingDetail("g1")
	tr.details["g2"] = ongoingDetail("g2")
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.SelectGame(ctx, "g1"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	if err := c.RefreshHistory(ctx, true); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if got := c.Snapshot().SelectedGameID; got != "g1" {
		t.Fatalf("auto-select must not override an existing selection, got %q", got)
	}
}

func TestMovePreconditionsAreSilentNoops(t *testing.T) {
	tr := newFakeTransport()
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	// Nothing selected.
	if err := c.MakeMove(ctx, 0, 0); err != nil {
		t.Fatalf("MakeMove with no selection: %v", err)
	}

	// Occupied cell.
	occupied := ongoingDetail("g1")
	occupied.Board[1][1] = "O"
	tr.details["g1"] = occupied
	if err := c.SelectGame(ctx, "g1"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	if err := c.MakeMove(ctx, 1, 1); err != nil {
		t.Fatalf("MakeMove on occupied cell: %v", err)
	}

	// Finished game.
	finished := ongoingDetail("g2")
	finished.Result = domain.ResultHumanWon
	tr.details["g2"] = finished
	if err := c.SelectGame(ctx, "g2"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	if err := c.MakeMove(ctx, 0, 0); err != nil {
		t.Fatalf("MakeMove on finished game: %v", err)
	}

	// Out-of-range coordinates.
	if err := c.MakeMove(ctx, 3, 0); err != nil {
		t.Fatalf("MakeMove out of range: %v", err)
	}

	if tr.moveCalls != 0 {
		t.Fatalf("preconditions must prevent any network call, got %d", tr.moveCalls)
	}
	if st := c.Snapshot(); st.Err != nil {
		t.Fatalf("precondition no-op must not surface an error: %v", st.Err)
	}
}

func TestMakeMoveAppliesServerDetailVerbatim(t *testing.T) {
	tr := newFakeTransport()
	tr.details["g1"] = ongoingDetail("g1")
	after := ongoingDetail("g1")
	after.Board[1][1] = "X"
	after.Board[0][0] = "O"
	tr.moveDetail = after
	tr.history = []domain.GameSummary{summary("g1", 100)}
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.SelectGame(ctx, "g1"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	histBefore := tr.historyCalls

	if err := c.MakeMove(ctx, 1, 1); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if tr.lastMoveGame != "g1" || tr.lastMoveX != 1 || tr.lastMoveY != 1 {
		t.Fatalf("transport got game=%q x=%d y=%d", tr.lastMoveGame, tr.lastMoveX, tr.lastMoveY)
	}

	st := c.Snapshot()
	if st.SelectedGame == nil || *st.SelectedGame != *after {
		t.Fatalf("detail must be the server response verbatim: %+v", st.SelectedGame)
	}
	if tr.historyCalls != histBefore+1 {
		t.Fatalf("a successful move must refresh history once, got %d extra", tr.historyCalls-histBefore)
	}
}

func TestMoveFailureKeepsDetail(t *testing.T) {
	tr := newFakeTransport()
	tr.details["g1"] = ongoingDetail("g1")
	tr.moveErr = fmt.Errorf("server says no: %w", gamesapi.ErrInvalidMove)
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.SelectGame(ctx, "g1"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	before := c.Snapshot()

	if err := c.MakeMove(ctx, 0, 0); err == nil {
		t.Fatalf("expected MakeMove to fail")
	}
	st := c.Snapshot()
	if st.SelectedGame == nil || *st.SelectedGame != *before.SelectedGame {
		t.Fatalf("failed move must leave the detail untouched")
	}
	if st.Err == nil || st.Err.Kind != KindMoveSubmit {
		t.Fatalf("expected move-submit error, got %v", st.Err)
	}
}

func TestDetailLoadFailureClearsDetail(t *testing.T) {
	tr := newFakeTransport()
	c, _ := newTestController(t, tr)

	if err := c.SelectGame(context.Background(), "missing"); err == nil {
		t.Fatalf("expected detail load to fail")
	}
	st := c.Snapshot()
	if st.SelectedGame != nil {
		t.Fatalf("failed detail fetch must clear the detail")
	}
	if st.Err == nil || st.Err.Kind != KindGameLoad {
		t.Fatalf("expected game-load error, got %v", st.Err)
	}
	if st.LoadingGame {
		t.Fatalf("loadingGame stuck after failure")
	}
}

func TestCreateSelectsNewGameWithoutDetailFetch(t *testing.T) {
	tr := newFakeTransport()
	created := ongoingDetail("new-game")
	tr.createDetail = created
	tr.history = []domain.GameSummary{summary("old", 100), summary("new-game", 200)}
	c, _ := newTestController(t, tr)

	if err := c.CreateGame(context.Background()); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	st := c.Snapshot()
	if st.SelectedGameID != "new-game" {
		t.Fatalf("created game must be selected, got %q", st.SelectedGameID)
	}
	if st.SelectedGame == nil || *st.SelectedGame != *created {
		t.Fatalf("create response is the authoritative detail: %+v", st.SelectedGame)
	}
	if st.CreatingGame {
		t.Fatalf("creatingGame stuck")
	}
	if len(st.Games) != 2 {
		t.Fatalf("create must refresh history, got %d games", len(st.Games))
	}
	// The fake never had "new-game" in details, so a detail fetch would
	// have failed; a surfaced error would mean one happened.
	if st.Err != nil {
		t.Fatalf("unexpected error: %v", st.Err)
	}
}

func TestCreatePersistsMintedIdentityOnce(t *testing.T) {
	tr := newFakeTransport()
	first := ongoingDetail("g1")
	first.PlayerID = "abc"
	tr.createDetail = first
	c, ids := newTestController(t, tr)
	ctx := context.Background()

	if err := c.CreateGame(ctx); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if tok, _ := ids.Get(); tok != "abc" {
		t.Fatalf("minted identity not persisted, got %q", tok)
	}

	// A later create must not re-persist, even if the response carries a
	// different token or none at all.
	second := ongoingDetail("g2")
	second.PlayerID = "other"
	tr.mu.Lock()
	tr.createDetail = second
	tr.mu.Unlock()
	if err := c.CreateGame(ctx); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if tok, _ := ids.Get(); tok != "abc" {
		t.Fatalf("identity is set-once, got %q", tok)
	}
}

func TestCreateFailureLeavesSelection(t *testing.T) {
	tr := newFakeTransport()
	tr.details["g1"] = ongoingDetail("g1")
	tr.createErr = errors.New("boom")
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	if err := c.SelectGame(ctx, "g1"); err != nil {
		t.Fatalf("SelectGame: %v", err)
	}
	if err := c.CreateGame(ctx); err == nil {
		t.Fatalf("expected CreateGame to fail")
	}
	st := c.Snapshot()
	if st.SelectedGameID != "g1" || st.SelectedGame == nil {
		t.Fatalf("failed create must not change the selection: %+v", st)
	}
	if st.Err == nil || st.Err.Kind != KindGameCreate {
		t.Fatalf("expected game-create error, got %v", st.Err)
	}
	if st.CreatingGame {
		t.Fatalf("creatingGame stuck after failure")
	}
}

func TestNewOperationClearsPreviousError(t *testing.T) {
	tr := newFakeTransport()
	tr.historyErr = errors.New("boom")
	c, _ := newTestController(t, tr)
	ctx := context.Background()

	_ = c.RefreshHistory(ctx, false)
	if c.Snapshot().Err == nil {
		t.Fatalf("expected pending error")
	}

	tr.mu.Lock()
	tr.historyErr = nil
	tr.mu.Unlock()
	if err := c.RefreshHistory(ctx, false); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if st := c.Snapshot(); st.Err != nil {
		t.Fatalf("a new operation must clear the previous error: %v", st.Err)
	}
}

func TestForgetIdentityRestartsBlankSession(t *testing.T) {
	tr := newFakeTransport()
	tr.history = []domain.GameSummary{summary("g1", 100)}
	tr.details["g1"] = ongoingDetail("g1")
	c, ids := newTestController(t, tr)
	ctx := context.Background()

	if err := ids.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.RefreshHistory(ctx, true); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}

	// The server would no longer recognize the anonymous requester.
	tr.mu.Lock()
	tr.historyErr = gamesapi.ErrNoHistory
	tr.mu.Unlock()

	if err := c.ForgetIdentity(ctx); err != nil {
		t.Fatalf("ForgetIdentity: %v", err)
	}
	if tok, _ := ids.Get(); tok != "" {
		t.Fatalf("token must be forgotten, got %q", tok)
	}
	st := c.Snapshot()
	if len(st.Games) != 0 || st.SelectedGameID != "" || st.SelectedGame != nil || st.Err != nil {
		t.Fatalf("expected blank session after forget: %+v", st)
	}
}

func TestSubscriberObservesTransitions(t *testing.T) {
	tr := newFakeTransport()
	tr.history = []domain.GameSummary{summary("g1", 100)}
	tr.details["g1"] = ongoingDetail("g1")
	c, _ := newTestController(t, tr)

	var states []State
	c.Subscribe(func(st State) { states = append(states, st) })

	if err := c.RefreshHistory(context.Background(), true); err != nil {
		t.Fatalf("RefreshHistory: %v", err)
	}
	if len(states) == 0 {
		t.Fatalf("subscriber saw no transitions")
	}
	sawLoading := false
	for _, st := range states {
		if st.LoadingHistory {
			sawLoading = true
		}
	}
	if !sawLoading {
		t.Fatalf("subscriber never saw loadingHistory=true")
	}
	last := states[len(states)-1]
	if last.SelectedGameID != "g1" || last.SelectedGame == nil {
		t.Fatalf("final notification missing settled state: %+v", last)
	}
}
