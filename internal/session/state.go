package session

import (
	"context"

	"github.com/nreyes-dev/ttt-cli/internal/domain"
)

// Transport is the remote-API surface the controller sequences. The
// production implementation is gamesapi.Client.
type Transport interface {
	CreateGame(ctx context.Context) (*domain.GameDetail, error)
	GetGame(ctx context.Context, gameID string) (*domain.GameDetail, error)
	SubmitMove(ctx context.Context, gameID string, x, y int) (*domain.GameDetail, error)
	GetHistory(ctx context.Context) ([]domain.GameSummary, error)
}

// State is an immutable snapshot of the session for the presentation
// layer. Presentation never writes session state; it calls controller
// operations and re-renders from the next snapshot.
type State struct {
	Games          []domain.GameSummary
	SelectedGameID string
	SelectedGame   *domain.GameDetail

	LoadingHistory bool
	LoadingGame    bool
	CreatingGame   bool

	Err *SessionError
}

// snapshotLocked copies the mutable state. Callers must hold c.mu.
func (c *Controller) snapshotLocked() State {
	st := State{
		SelectedGameID: c.selectedID,
		LoadingHistory: c.loadingHistory,
		LoadingGame:    c.loadingGame,
		CreatingGame:   c.creatingGame,
		Err:            c.err,
	}
	if c.games != nil {
		st.Games = append([]domain.GameSummary(nil), c.games...)
	}
	if c.selected != nil {
		detail := *c.selected
		st.SelectedGame = &detail
	}
	return st
}
