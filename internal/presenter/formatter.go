// Package presenter renders session snapshots into terminal text blocks.
// It only reads state; every mutation goes through the session controller.
package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/nreyes-dev/ttt-cli/internal/domain"
	"github.com/nreyes-dev/ttt-cli/internal/msgcat"
	"github.com/nreyes-dev/ttt-cli/internal/session"
)

type Formatter struct {
	catalog *msgcat.Catalog
}

func NewFormatter(catalog *msgcat.Catalog) *Formatter {
	return &Formatter{catalog: catalog}
}

// Board renders the selected game's grid with a status line, or the
// no-selection hint when nothing is selected.
func (f *Formatter) Board(st session.State) string {
	if st.SelectedGame == nil {
		if st.LoadingGame {
			return f.catalog.RenderOr("history.loading", nil, "Loading…")
		}
		return f.catalog.RenderOr("board.none_selected", nil, "No game selected.")
	}

	g := st.SelectedGame
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Game %s — %s\n", g.GameID, f.statusText(g.Result)))
	sb.WriteString("\n      0   1   2\n")
	sb.WriteString("    +---+---+---+\n")
	for y := 0; y < domain.BoardSize; y++ {
		sb.WriteString(fmt.Sprintf("  %d |", y))
		for x := 0; x < domain.BoardSize; x++ {
			cell := g.Cell(x, y)
			if cell == domain.EmptyCell {
				cell = " "
			}
			sb.WriteString(fmt.Sprintf(" %s |", cell))
		}
		sb.WriteString("\n    +---+---+---+\n")
	}
	sb.WriteString("\n")
	sb.WriteString(f.catalog.RenderOr("board.plays_as",
		map[string]string{"Symbol": g.HumanPlaysAs},
		fmt.Sprintf("Player plays as %s.", g.HumanPlaysAs)))
	return sb.String()
}

// History renders the W-L-D record header and the history list, newest
// first, with the selected entry marked.
func (f *Formatter) History(st session.State) string {
	var sb strings.Builder
	sb.WriteString(f.catalog.RenderOr("history.header", nil, "Game history"))

	rec := domain.TallyRecord(st.Games)
	sb.WriteString("  ")
	sb.WriteString(f.catalog.RenderOr("history.record",
		map[string]int{"Wins": rec.Wins, "Losses": rec.Losses},
		fmt.Sprintf("Record: %d - %d (W - L)", rec.Wins, rec.Losses)))
	if rec.Draws > 0 {
		sb.WriteString(f.catalog.RenderOr("history.record_draws",
			map[string]int{"Draws": rec.Draws},
			fmt.Sprintf(" · %d draw(s)", rec.Draws)))
	}
	sb.WriteString("\n")

	if st.LoadingHistory {
		sb.WriteString(f.catalog.RenderOr("history.loading", nil, "Loading…"))
		return sb.String()
	}
	if len(st.Games) == 0 {
		sb.WriteString(f.catalog.RenderOr("history.empty", nil, "No games yet."))
		return sb.String()
	}

	// Server order is oldest first; show newest on top like the web UI.
	for i := len(st.Games) - 1; i >= 0; i-- {
		g := st.Games[i]
		marker := "  "
		if g.GameID == st.SelectedGameID {
			marker = "> "
		}
		sb.WriteString(fmt.Sprintf("%s#%-3d %s  %-4s  %s\n",
			marker, i+1, formatCreatedAt(g.CreatedAt), resultPill(g.Result), g.GameID))
	}
	return sb.String()
}

// ErrorLine maps the session error slot to its user-facing message, ""
// when no error is pending.
func (f *Formatter) ErrorLine(err *session.SessionError) string {
	if err == nil {
		return ""
	}
	return f.catalog.RenderOr("error."+string(err.Kind), nil, err.Error())
}

func (f *Formatter) PlayerBadge(playerID string) string {
	if strings.TrimSpace(playerID) == "" {
		return f.catalog.RenderOr("player.anonymous", nil, "Anonymous")
	}
	return f.catalog.RenderOr("player.badge",
		map[string]string{"PlayerID": playerID},
		"Player ID: "+playerID)
}

func (f *Formatter) statusText(result string) string {
	switch result {
	case domain.ResultOngoing:
		return f.catalog.RenderOr("status.ongoing", nil, "Your move…")
	case domain.ResultHumanWon:
		return f.catalog.RenderOr("status.human_won", nil, "You won!")
	case domain.ResultCPUWon:
		return f.catalog.RenderOr("status.cpu_won", nil, "CPU won.")
	case domain.ResultDraw:
		return f.catalog.RenderOr("status.draw", nil, "It's a draw.")
	default:
		return result
	}
}

func resultPill(result string) string {
	switch result {
	case domain.ResultHumanWon:
		return "WIN"
	case domain.ResultCPUWon:
		return "LOSS"
	case domain.ResultDraw:
		return "DRAW"
	case domain.ResultOngoing:
		return "LIVE"
	default:
		return "?"
	}
}

func formatCreatedAt(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}
