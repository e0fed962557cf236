// Package match records backgammon games as dice and checker moves and
// replays them onto engine positions.
package match

import (
	"fmt"
	"strings"

	"github.com/yourusername/bgrollout/pkg/engine"
)

// Match represents a complete backgammon match.
type Match struct {
	// Match metadata
	PlayerO     string  // Name of the player moving o
	PlayerX     string  // Name of the player moving x
	MatchLength int     // Match length (0 = money game)
	Date        string  // Match date (YYYY-MM-DD format)
	Event       string  // Event name
	Comment     string  // General match comments
	Games       []*Game // List of games in the match
}

// Game represents a single game within a match.
type Game struct {
	Number int    // Game number (1-indexed)
	Turns  []Turn // Sequence of turns, o then x
}

// Turn pairs o's move with x's reply. Either may be nil: the first turn
// of a game x opens has no o move, and the last turn may end after o.
type Turn struct {
	O *Move
	X *Move
}

// Move is one side's play: the roll and the checkers moved with it, in
// the mover's own point numbering. No checkers means the roll was passed.
type Move struct {
	Dice     engine.Dice
	Checkers []engine.CheckerMove
}

// GameResult indicates how a game ended.
type GameResult int

const (
	ResultInProgress GameResult = iota // Game not finished
	ResultSingle                       // Normal win
	ResultGammon                       // Gammon
	ResultBackgammon                   // Backgammon
)

// String returns the result name.
func (r GameResult) String() string {
	switch r {
	case ResultSingle:
		return "single"
	case ResultGammon:
		return "gammon"
	case ResultBackgammon:
		return "backgammon"
	default:
		return "in progress"
	}
}

// Points returns the points a result is worth, without cube.
func (r GameResult) Points() int {
	switch r {
	case ResultSingle:
		return 1
	case ResultGammon:
		return 2
	case ResultBackgammon:
		return 3
	default:
		return 0
	}
}

// NewMatch creates a new empty match.
func NewMatch(playerO, playerX string, matchLength int) *Match {
	return &Match{
		PlayerO:     playerO,
		PlayerX:     playerX,
		MatchLength: matchLength,
		Games:       make([]*Game, 0),
	}
}

// NewGame appends a new, empty game to the match and returns it.
func (m *Match) NewGame() *Game {
	g := &Game{Number: len(m.Games) + 1}
	m.Games = append(m.Games, g)
	return g
}

// AddO starts a new turn with o's move.
func (g *Game) AddO(mv Move) {
	g.Turns = append(g.Turns, Turn{O: &mv})
}

// AddX records x's move, completing the current turn or, when o has not
// moved, opening a turn of its own.
func (g *Game) AddX(mv Move) {
	if n := len(g.Turns); n > 0 && g.Turns[n-1].X == nil && g.Turns[n-1].O != nil {
		g.Turns[n-1].X = &mv
		return
	}
	g.Turns = append(g.Turns, Turn{X: &mv})
}

// Moves returns the game's moves in play order with the side making each.
func (g *Game) Moves() ([]engine.Side, []Move) {
	var sides []engine.Side
	var moves []Move
	for _, t := range g.Turns {
		if t.O != nil {
			sides = append(sides, engine.O)
			moves = append(moves, *t.O)
		}
		if t.X != nil {
			sides = append(sides, engine.X)
			moves = append(moves, *t.X)
		}
	}
	return sides, moves
}

// String renders the move as "6-4: 24/18 13/9", or "6-4: (no play)" for
// a pass.
func (mv Move) String() string {
	if len(mv.Checkers) == 0 {
		return mv.Dice.String() + ": (no play)"
	}
	parts := make([]string, len(mv.Checkers))
	for i, c := range mv.Checkers {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s: %s", mv.Dice, strings.Join(parts, " "))
}
