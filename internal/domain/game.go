package domain

const (
	ResultOngoing  = "ongoing"
	ResultHumanWon = "human won"
	ResultCPUWon   = "CPU won"
	ResultDraw     = "draw"
)

// EmptyCell is the server's marker for an unplayed square.
const EmptyCell = "."

const BoardSize = 3

// Board is row-major: Board[y][x], matching the server's game_state layout.
type Board [BoardSize][BoardSize]string

// GameSummary is one history entry. Server-owned; the client only ever
// replaces whole lists of these, never edits one.
type GameSummary struct {
	GameID       string `json:"game_id"`
	CreatedAt    int64  `json:"created_at"`
	Result       string `json:"game_result"`
	HumanPlaysAs string `json:"human_plays_as"`
}

// GameDetail is the full authoritative record for one game. Every field is
// computed server-side; the client never derives a new detail from a move.
type GameDetail struct {
	GameID       string `json:"game_id"`
	Board        Board  `json:"game_state"`
	Result       string `json:"game_result"`
	HumanPlaysAs string `json:"human_plays_as"`

	// PlayerID is only present on a create response, and only the first
	// time the server mints an identity for this client.
	PlayerID string `json:"player_id,omitempty"`
}

func (g *GameDetail) Ongoing() bool {
	return g != nil && g.Result == ResultOngoing
}

// Cell returns the symbol at zero-based column x, row y, or EmptyCell when
// the coordinates fall outside the grid.
func (g *GameDetail) Cell(x, y int) string {
	if g == nil || x < 0 || x >= BoardSize || y < 0 || y >= BoardSize {
		return EmptyCell
	}
	if g.Board[y][x] == "" {
		return EmptyCell
	}
	return g.Board[y][x]
}

func (g *GameDetail) CellOpen(x, y int) bool {
	if x < 0 || x >= BoardSize || y < 0 || y >= BoardSize {
		return false
	}
	return g.Cell(x, y) == EmptyCell
}

type Record struct {
	Wins   int
	Losses int
	Draws  int
}

// TallyRecord computes the W-L-D record over a history list. Ongoing or
// unknown results are not counted.
func TallyRecord(games []GameSummary) Record {
	var r Record
	for _, g := range games {
		switch g.Result {
		case ResultHumanWon:
			r.Wins++
		case ResultCPUWon:
			r.Losses++
		case ResultDraw:
			r.Draws++
		}
	}
	return r
}
