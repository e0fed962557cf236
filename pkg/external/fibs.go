// Package external reads positions written by other backgammon programs.
package external

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/bgrollout/pkg/engine"
)

// ErrInvalidFIBSBoard is returned for malformed FIBS board strings.
var ErrInvalidFIBSBoard = errors.New("invalid FIBS board")

// fibsFields is the number of fields up to and including the bar counts.
const fibsFields = 48

// FIBSBoard represents a parsed FIBS board string.
// See: http://www.fibs.com/fibs_interface.html#board_state
type FIBSBoard struct {
	Player1     string  // Your name
	Player2     string  // Opponent's name
	MatchLength int     // Match length (0 = unlimited)
	Score1      int     // Your score
	Score2      int     // Opponent's score
	Board       [26]int // Board positions, signed by color
	Turn        int     // Color on roll (0 = game over)
	Dice        [2]int  // Your dice (0,0 if not rolled)
	OppDice     [2]int  // Opponent's dice
	Cube        int     // Cube value
	Color       int     // Your color (1 or -1)
	Direction   int     // -1 if you move from 24 to 1, 1 otherwise
	OnHome      int     // Your checkers borne off
	OppOnHome   int     // Opponent's checkers borne off
	OnBar       int     // Your checkers on the bar
	OppOnBar    int     // Opponent's checkers on the bar
}

// ParseFIBSBoard parses a FIBS board string.
// Format: board:player1:player2:matchlen:score1:score2:board[26]:turn:dice[4]:cube:...
func ParseFIBSBoard(s string) (*FIBSBoard, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "board:")

	parts := strings.Split(s, ":")
	if len(parts) < fibsFields {
		return nil, fmt.Errorf("%w: expected at least %d fields, got %d", ErrInvalidFIBSBoard, fibsFields, len(parts))
	}

	nums := make([]int, fibsFields)
	for i := 2; i < fibsFields; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %q is not a number", ErrInvalidFIBSBoard, i+1, parts[i])
		}
		nums[i] = n
	}

	fb := &FIBSBoard{
		Player1:     parts[0],
		Player2:     parts[1],
		MatchLength: nums[2],
		Score1:      nums[3],
		Score2:      nums[4],
		Turn:        nums[31],
		Dice:        [2]int{nums[32], nums[33]},
		OppDice:     [2]int{nums[34], nums[35]},
		Cube:        nums[36],
		Color:       nums[40],
		Direction:   nums[41],
		OnHome:      nums[44],
		OppOnHome:   nums[45],
		OnBar:       nums[46],
		OppOnBar:    nums[47],
	}
	copy(fb.Board[:], nums[5:31])

	if fb.Color != 1 && fb.Color != -1 {
		return nil, fmt.Errorf("%w: color %d", ErrInvalidFIBSBoard, fb.Color)
	}
	if fb.Direction != 1 && fb.Direction != -1 {
		return nil, fmt.Errorf("%w: direction %d", ErrInvalidFIBSBoard, fb.Direction)
	}
	return fb, nil
}

// point converts a board index to your point number.
func (fb *FIBSBoard) point(i int) int {
	if fb.Direction == -1 {
		return i
	}
	return 25 - i
}

// Position converts the board to a Position. You are always o, so the
// returned position is numbered from your side.
func (fb *FIBSBoard) Position() (engine.Position, error) {
	o, x := engine.Points{}, engine.Points{}
	for i := 1; i <= 24; i++ {
		n := fb.Board[i] * fb.Color
		switch {
		case n > 0:
			o[fb.point(i)] = n
		case n < 0:
			x[fb.point(i)] = -n
		}
	}
	p, err := engine.NewPosition(o, x, fb.OnBar, fb.OppOnBar, fb.OnHome, fb.OppOnHome)
	if err != nil {
		return engine.Position{}, fmt.Errorf("%w: %w", ErrInvalidFIBSBoard, err)
	}
	return p, nil
}

// SideToMove reports who is on roll. ok is false once the game is over.
func (fb *FIBSBoard) SideToMove() (side engine.Side, ok bool) {
	switch fb.Turn {
	case 0:
		return engine.O, false
	case fb.Color:
		return engine.O, true
	default:
		return engine.X, true
	}
}

// Roll returns the dice already rolled by the side on roll, if any.
func (fb *FIBSBoard) Roll() (engine.Dice, bool) {
	side, ok := fb.SideToMove()
	if !ok {
		return engine.Dice{}, false
	}
	d := fb.Dice
	if side == engine.X {
		d = fb.OppDice
	}
	dice, err := engine.NewDice(d[0], d[1])
	if err != nil {
		return engine.Dice{}, false
	}
	return dice, true
}
