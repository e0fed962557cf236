package engine

import (
	"errors"
	"fmt"
)

// ErrHitMismatch is returned when a checker move's hit flag disagrees
// with the board it is played on.
var ErrHitMismatch = errors.New("hit flag does not match the board")

// CheckerMove moves a single checker, numbered from the mover's side.
// From is 1-24, or BarPoint (25) to enter; To is 1-24, or OffPoint (0) to
// bear off.
type CheckerMove struct {
	From int
	To   int
	Hit  bool
}

// IsEntering reports whether the checker comes in from the bar.
func (m CheckerMove) IsEntering() bool { return m.From == BarPoint }

// IsBearingOff reports whether the checker leaves the board.
func (m CheckerMove) IsBearingOff() bool { return m.To == OffPoint }

// String renders the move as "13/7", "25/20*" or "4/0".
func (m CheckerMove) String() string {
	if m.Hit {
		return fmt.Sprintf("%d/%d*", m.From, m.To)
	}
	return fmt.Sprintf("%d/%d", m.From, m.To)
}

// Apply plays the move for o.
func (m CheckerMove) Apply(p Position) (Position, error) {
	if m.IsBearingOff() {
		if m.Hit {
			return p, fmt.Errorf("%w: %s", ErrHitMismatch, m)
		}
		return p.BearOff(m.From)
	}

	if m.To >= 1 && m.To <= NumPoints {
		if hits := p.x[m.To-1] == 1; hits != m.Hit {
			return p, fmt.Errorf("%w: %s", ErrHitMismatch, m)
		}
	}
	if m.IsEntering() {
		return p.Enter(m.To)
	}
	return p.Move(m.From, m.To)
}

// Play applies checker moves for o in order, stopping at the first one
// that is illegal.
func (p Position) Play(moves []CheckerMove) (Position, error) {
	cur := p
	for i, m := range moves {
		next, err := m.Apply(cur)
		if err != nil {
			return p, fmt.Errorf("checker move %d (%s): %w", i+1, m, err)
		}
		cur = next
	}
	return cur, nil
}

// PlayFor applies checker moves for side. X's moves are numbered from
// x's side, as in match transcripts.
func PlayFor(side Side, p Position, moves []CheckerMove) (Position, error) {
	if side == O {
		return p.Play(moves)
	}
	q, err := p.Flip().Play(moves)
	if err != nil {
		return p, err
	}
	return q.Flip(), nil
}
