// Package session owns the client-side view of one player's games: the
// history list, the selected game id, and the selected game's detail. It
// sequences the network calls that mutate or refresh them and keeps the
// three consistent across overlapping async completions.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nreyes-dev/ttt-cli/internal/domain"
	"github.com/nreyes-dev/ttt-cli/internal/gamesapi"
	"github.com/nreyes-dev/ttt-cli/internal/identity"
)

type Controller struct {
	transport Transport
	ids       identity.Store
	logger    *zap.Logger

	mu         sync.Mutex
	games      []domain.GameSummary
	selectedID string
	selected   *domain.GameDetail

	// selectEpoch increments on every change of selectedID. A detail fetch
	// captures the epoch before the network call and discards its result if
	// the epoch moved on, so a slow fetch for a superseded selection can
	// never clobber the current one.
	selectEpoch uint64

	loadingHistory bool
	loadingGame    bool
	creatingGame   bool
	err            *SessionError

	subs []func(State)
}

func NewController(transport Transport, ids identity.Store, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{transport: transport, ids: ids, logger: logger}
}

// Subscribe registers fn to run after every state transition with the
// resulting snapshot.
func (c *Controller) Subscribe(fn func(State)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// PlayerID reads the persisted identity token, "" when none is known.
func (c *Controller) PlayerID() string {
	tok, err := c.ids.Get()
	if err != nil {
		c.logger.Warn("identity read failed", zap.Error(err))
		return ""
	}
	return tok
}

// notifyLocked snapshots under the held lock and schedules subscriber
// callbacks for after release, so a subscriber may call Snapshot.
func (c *Controller) notifyLocked() func() {
	if len(c.subs) == 0 {
		return func() {}
	}
	st := c.snapshotLocked()
	subs := c.subs
	return func() {
		for _, fn := range subs {
			fn(st)
		}
	}
}

// RefreshHistory replaces the games list from the server. The identity
// having no games yet is an empty list, not a failure; any other failure
// keeps the previous list and sets a history-load error. With
// autoSelectIfNone, an unselected session selects the newest entry.
func (c *Controller) RefreshHistory(ctx context.Context, autoSelectIfNone bool) error {
	c.mu.Lock()
	c.err = nil
	c.loadingHistory = true
	notify := c.notifyLocked()
	c.mu.Unlock()
	notify()

	list, err := c.transport.GetHistory(ctx)
	if err != nil && errors.Is(err, gamesapi.ErrNoHistory) {
		list, err = []domain.GameSummary{}, nil
	}

	c.mu.Lock()
	c.loadingHistory = false
	if err != nil {
		// Stale data beats blanked data: keep the last known-good list.
		c.err = &SessionError{Kind: KindHistoryLoad, Cause: err}
		notify := c.notifyLocked()
		c.mu.Unlock()
		notify()
		c.logger.Warn("history refresh failed", zap.Error(err))
		return err
	}

	c.games = list

	var loadID string
	var loadEpoch uint64
	if len(list) == 0 {
		c.clearSelectionLocked()
	} else if autoSelectIfNone && c.selectedID == "" {
		newest := list[len(list)-1]
		loadID, loadEpoch = c.setSelectionLocked(newest.GameID)
	}
	notify = c.notifyLocked()
	c.mu.Unlock()
	notify()

	c.logger.Debug("history refreshed", zap.Int("games", len(list)))
	if loadID != "" {
		return c.loadDetail(ctx, loadID, loadEpoch)
	}
	return nil
}

// SelectGame moves the selection to gameID and loads its detail in the
// same transition. An empty id clears both selection and detail.
func (c *Controller) SelectGame(ctx context.Context, gameID string) error {
	c.mu.Lock()
	c.err = nil
	if gameID == "" {
		c.clearSelectionLocked()
		notify := c.notifyLocked()
		c.mu.Unlock()
		notify()
		return nil
	}
	id, epoch := c.setSelectionLocked(gameID)
	notify := c.notifyLocked()
	c.mu.Unlock()
	notify()

	return c.loadDetail(ctx, id, epoch)
}

// clearSelectionLocked enforces I1: no selected id means no detail either.
func (c *Controller) clearSelectionLocked() {
	c.selectedID = ""
	c.selected = nil
	c.loadingGame = false
	c.selectEpoch++
}

// setSelectionLocked points the session at gameID. The detail is dropped
// until its fetch confirms, so a present detail always matches the id.
func (c *Controller) setSelectionLocked(gameID string) (string, uint64) {
	c.selectedID = gameID
	c.selected = nil
	c.loadingGame = true
	c.selectEpoch++
	return gameID, c.selectEpoch
}

// loadDetail fetches gameID and applies the outcome only if the selection
// epoch is still the one captured at the start; a superseded fetch is
// discarded without touching state.
func (c *Controller) loadDetail(ctx context.Context, gameID string, epoch uint64) error {
	detail, err := c.transport.GetGame(ctx, gameID)

	c.mu.Lock()
	if c.selectEpoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("stale game detail discarded", zap.String("game_id", gameID))
		return nil
	}
	c.loadingGame = false
	if err != nil {
		c.selected = nil
		c.err = &SessionError{Kind: KindGameLoad, Cause: err}
	} else {
		c.selected = detail
	}
	notify := c.notifyLocked()
	c.mu.Unlock()
	notify()

	if err != nil {
		c.logger.Warn("game detail load failed", zap.String("game_id", gameID), zap.Error(err))
		return err
	}
	return nil
}

// CreateGame asks the server for a new game, persists a first-ever minted
// identity, selects the created game straight from the create response,
// and refreshes history without overriding that selection.
func (c *Controller) CreateGame(ctx context.Context) error {
	c.mu.Lock()
	c.err = nil
	c.creatingGame = true
	notify := c.notifyLocked()
	c.mu.Unlock()
	notify()

	detail, err := c.transport.CreateGame(ctx)
	if err != nil {
		c.mu.Lock()
		c.creatingGame = false
		c.err = &SessionError{Kind: KindGameCreate, Cause: err}
		notify := c.notifyLocked()
		c.mu.Unlock()
		notify()
		c.logger.Warn("game create failed", zap.Error(err))
		return err
	}

	c.persistMintedIdentity(detail)

	c.mu.Lock()
	c.selectedID = detail.GameID
	c.selectEpoch++
	c.selected = detail
	c.loadingGame = false
	notify = c.notifyLocked()
	c.mu.Unlock()
	notify()

	c.logger.Info("game created", zap.String("game_id", detail.GameID))

	refreshErr := c.RefreshHistory(ctx, false)

	c.mu.Lock()
	c.creatingGame = false
	notify = c.notifyLocked()
	c.mu.Unlock()
	notify()
	return refreshErr
}

// persistMintedIdentity writes the token from a create response, but only
// when none was previously known. Identity is set-once.
func (c *Controller) persistMintedIdentity(detail *domain.GameDetail) {
	if detail == nil || detail.PlayerID == "" {
		return
	}
	prev, err := c.ids.Get()
	if err != nil {
		c.logger.Warn("identity read failed", zap.Error(err))
		return
	}
	if prev != "" {
		return
	}
	if err := c.ids.Set(detail.PlayerID); err != nil {
		// Session still works for this process; the next create will
		// carry no header and the server will mint again.
		c.logger.Warn("identity persist failed", zap.Error(err))
		return
	}
	c.logger.Info("player identity persisted")
}

// MakeMove submits the human move at zero-based column x, row y. Obviously
// invalid input (nothing selected, finished game, occupied cell) is a
// silent no-op with no network call; the server stays the sole authority
// on legality for everything else.
func (c *Controller) MakeMove(ctx context.Context, x, y int) error {
	c.mu.Lock()
	if c.selected == nil || !c.selected.Ongoing() || !c.selected.CellOpen(x, y) {
		c.mu.Unlock()
		return nil
	}
	gameID := c.selectedID
	epoch := c.selectEpoch
	c.err = nil
	notify := c.notifyLocked()
	c.mu.Unlock()
	notify()

	detail, err := c.transport.SubmitMove(ctx, gameID, x, y)
	if err != nil {
		c.mu.Lock()
		c.err = &SessionError{Kind: KindMoveSubmit, Cause: err}
		notify := c.notifyLocked()
		c.mu.Unlock()
		notify()
		c.logger.Warn("move submit failed", zap.String("game_id", gameID), zap.Error(err))
		return err
	}

	c.mu.Lock()
	// The selection may have moved while the move was in flight; the reply
	// must not resurrect the old game's detail.
	if c.selectEpoch == epoch {
		c.selected = detail
	}
	notify = c.notifyLocked()
	c.mu.Unlock()
	notify()

	return c.RefreshHistory(ctx, false)
}

// ForgetIdentity drops the persisted token and restarts the session from
// blank anonymous state, including the initial auto-selecting history load.
func (c *Controller) ForgetIdentity(ctx context.Context) error {
	if err := c.ids.Forget(); err != nil {
		return err
	}

	c.mu.Lock()
	c.games = nil
	c.clearSelectionLocked()
	c.loadingHistory = false
	c.creatingGame = false
	c.err = nil
	notify := c.notifyLocked()
	c.mu.Unlock()
	notify()

	c.logger.Info("player identity forgotten")
	return c.RefreshHistory(ctx, true)
}
