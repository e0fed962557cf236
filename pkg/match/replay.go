package match

import (
	"errors"
	"fmt"

	"github.com/yourusername/bgrollout/pkg/engine"
)

// ErrIllegalTurn is returned when a recorded move is not a legal play of
// its roll.
var ErrIllegalTurn = errors.New("illegal turn")

// Apply plays the move's checkers for side without checking them against
// the roll.
func (mv Move) Apply(side engine.Side, p engine.Position) (engine.Position, error) {
	return engine.PlayFor(side, p, mv.Checkers)
}

// Verify plays the move for side and checks that the result is one of
// the positions the roll allows. A pass is legal only when the roll has
// no play.
func (mv Move) Verify(side engine.Side, p engine.Position) (engine.Position, error) {
	next, err := mv.Apply(side, p)
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrIllegalTurn, err)
	}

	legal := engine.LegalPositionsFor(side, p, mv.Dice)
	if len(legal) == 0 {
		if next != p {
			return p, fmt.Errorf("%w: %s has no play", ErrIllegalTurn, mv.Dice)
		}
		return next, nil
	}
	for _, q := range legal {
		if q == next {
			return next, nil
		}
	}
	if next == p {
		return p, fmt.Errorf("%w: %s must be played", ErrIllegalTurn, mv.Dice)
	}
	return p, fmt.Errorf("%w: %s is not a legal play", ErrIllegalTurn, mv)
}

// Replay verifies every move of the game from start and returns the
// position after each one. On error the positions reached so far are
// returned with it.
func (g *Game) Replay(start engine.Position) ([]engine.Position, error) {
	sides, moves := g.Moves()
	positions := make([]engine.Position, 0, len(moves))

	p := start
	for i, mv := range moves {
		if p.IsOver() {
			return positions, fmt.Errorf("move %d (%v %s): %w: game is over", i+1, sides[i], mv, ErrIllegalTurn)
		}
		next, err := mv.Verify(sides[i], p)
		if err != nil {
			return positions, fmt.Errorf("move %d (%v %s): %w", i+1, sides[i], mv, err)
		}
		positions = append(positions, next)
		p = next
	}
	return positions, nil
}

// Outcome summarizes a replayed game.
type Outcome struct {
	Final  engine.Position
	Winner engine.Side // Meaningless while Result is ResultInProgress
	Result GameResult
}

// Outcome replays the game from start and classifies its final position.
func (g *Game) Outcome(start engine.Position) (Outcome, error) {
	positions, err := g.Replay(start)
	if err != nil {
		return Outcome{}, err
	}
	final := start
	if len(positions) > 0 {
		final = positions[len(positions)-1]
	}
	return Classify(final), nil
}

// Classify reports who has won p and by how much.
func Classify(p engine.Position) Outcome {
	out := Outcome{Final: p}
	winner, ok := p.Winner()
	if !ok {
		return out
	}
	out.Winner = winner
	switch {
	case p.HasBackgammoned(winner):
		out.Result = ResultBackgammon
	case p.HasGammoned(winner):
		out.Result = ResultGammon
	default:
		out.Result = ResultSingle
	}
	return out
}

// Score replays every game from the initial position and returns the
// points won by o and x.
func (m *Match) Score() (o, x int, err error) {
	for _, g := range m.Games {
		out, err := g.Outcome(engine.Initial())
		if err != nil {
			return o, x, fmt.Errorf("game %d: %w", g.Number, err)
		}
		switch {
		case out.Result == ResultInProgress:
		case out.Winner == engine.O:
			o += out.Result.Points()
		default:
			x += out.Result.Points()
		}
	}
	return o, x, nil
}
