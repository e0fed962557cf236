// Package engine implements the rules of backgammon: positions, dice, legal
// move generation and random-play rollouts.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/bgrollout/internal/positionid"
)

const (
	// NumPoints is the number of points on the board.
	NumPoints = 24
	// NumCheckers is the number of checkers each side owns.
	NumCheckers = 15
	// BarPoint is the source point used for entering from the bar.
	BarPoint = 25
	// OffPoint is the destination point used for bearing off.
	OffPoint = 0
)

// Side identifies one of the two players. O is the canonical mover: the
// rules are written for O and X is handled by flipping the board.
type Side int

const (
	O Side = iota
	X
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == O {
		return X
	}
	return O
}

func (s Side) String() string {
	if s == O {
		return "o"
	}
	return "x"
}

// ParseSide accepts "o" or "x" in either case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "o", "":
		return O, nil
	case "x":
		return X, nil
	}
	return O, fmt.Errorf("unknown side %q", s)
}

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidPoint    = errors.New("invalid point")
	ErrNoChecker       = errors.New("no checker on source point")
	ErrBlocked         = errors.New("destination point is blocked")
	ErrEmptyBar        = errors.New("no checker on the bar")
	ErrCannotBearOff   = errors.New("cannot bear off")
	ErrBackwardMove    = errors.New("checkers move toward point 1")
)

// Points maps a point number (1-24, o's numbering) to a checker count.
type Points map[int]int

// Position is an immutable snapshot of the board. Points are stored
// 0-based from o's side: index i is o's point i+1 and x's point 24-i.
// Positions compare with == and can be used as map keys.
type Position struct {
	o, x       [NumPoints]uint8
	oBar, xBar uint8
	oHome      uint8
	xHome      uint8
}

// NewPosition builds a position. Both o and x are keyed by o's point
// numbers. Each side's board, bar and home checkers must total 15 and no
// point may hold checkers of both sides.
func NewPosition(o, x Points, oBar, xBar, oHome, xHome int) (Position, error) {
	var p Position
	if err := fillPoints(&p.o, o); err != nil {
		return Position{}, err
	}
	if err := fillPoints(&p.x, x); err != nil {
		return Position{}, err
	}
	for _, n := range []int{oBar, xBar, oHome, xHome} {
		if n < 0 || n > NumCheckers {
			return Position{}, fmt.Errorf("%w: count %d out of range", ErrInvalidPosition, n)
		}
	}
	p.oBar, p.xBar = uint8(oBar), uint8(xBar)
	p.oHome, p.xHome = uint8(oHome), uint8(xHome)

	if err := p.validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// MustPosition is like NewPosition but panics on invalid input.
func MustPosition(o, x Points, oBar, xBar, oHome, xHome int) Position {
	p, err := NewPosition(o, x, oBar, xBar, oHome, xHome)
	if err != nil {
		panic(err)
	}
	return p
}

// Initial returns the standard starting position.
func Initial() Position {
	return MustPosition(
		Points{6: 5, 8: 3, 13: 5, 24: 2},
		Points{1: 2, 12: 5, 17: 3, 19: 5},
		0, 0, 0, 0,
	)
}

func fillPoints(dst *[NumPoints]uint8, src Points) error {
	for point, n := range src {
		if n == 0 {
			continue
		}
		if point < 1 || point > NumPoints {
			return fmt.Errorf("%w: point %d", ErrInvalidPosition, point)
		}
		if n < 0 || n > NumCheckers {
			return fmt.Errorf("%w: %d checkers on point %d", ErrInvalidPosition, n, point)
		}
		dst[point-1] = uint8(n)
	}
	return nil
}

func (p Position) validate() error {
	oCount := int(p.oBar) + int(p.oHome)
	xCount := int(p.xBar) + int(p.xHome)
	for i := 0; i < NumPoints; i++ {
		if p.o[i] > 0 && p.x[i] > 0 {
			return fmt.Errorf("%w: point %d held by both sides", ErrInvalidPosition, i+1)
		}
		oCount += int(p.o[i])
		xCount += int(p.x[i])
	}
	if oCount != NumCheckers {
		return fmt.Errorf("%w: o has %d checkers", ErrInvalidPosition, oCount)
	}
	if xCount != NumCheckers {
		return fmt.Errorf("%w: x has %d checkers", ErrInvalidPosition, xCount)
	}
	return nil
}

// view returns the position as seen by side, so that side plays as o.
func (p Position) view(side Side) Position {
	if side == X {
		return p.Flip()
	}
	return p
}

// Checkers returns side's checkers on point (1-24, o's numbering).
func (p Position) Checkers(side Side, point int) int {
	if point < 1 || point > NumPoints {
		return 0
	}
	if side == X {
		return int(p.x[point-1])
	}
	return int(p.o[point-1])
}

// Bar returns the number of side's checkers waiting to enter.
func (p Position) Bar(side Side) int {
	if side == X {
		return int(p.xBar)
	}
	return int(p.oBar)
}

// Home returns the number of side's checkers borne off.
func (p Position) Home(side Side) int {
	if side == X {
		return int(p.xHome)
	}
	return int(p.oHome)
}

// CanBearOff reports whether all of side's checkers are in its home board
// or already off.
func (p Position) CanBearOff(side Side) bool {
	v := p.view(side)
	n := int(v.oHome)
	for i := 0; i < 6; i++ {
		n += int(v.o[i])
	}
	return n == NumCheckers
}

// HasWon reports whether side has borne off all its checkers.
func (p Position) HasWon(side Side) bool {
	return p.Home(side) == NumCheckers
}

// HasGammoned reports a win where the opponent has borne off nothing.
func (p Position) HasGammoned(side Side) bool {
	return p.HasWon(side) && p.Home(side.Opponent()) == 0
}

// HasBackgammoned reports a gammon where the opponent still has a checker
// on the bar or in the winner's home board.
func (p Position) HasBackgammoned(side Side) bool {
	if !p.HasGammoned(side) {
		return false
	}
	v := p.view(side)
	n := int(v.xBar)
	for i := 0; i < 6; i++ {
		n += int(v.x[i])
	}
	return n > 0
}

// IsOver reports whether either side has won.
func (p Position) IsOver() bool {
	return p.HasWon(O) || p.HasWon(X)
}

// Winner returns the winning side, if any.
func (p Position) Winner() (Side, bool) {
	switch {
	case p.HasWon(O):
		return O, true
	case p.HasWon(X):
		return X, true
	}
	return O, false
}

// PipCount is the total distance side's checkers must travel to bear off.
func (p Position) PipCount(side Side) int {
	v := p.view(side)
	pips := int(v.oBar) * BarPoint
	for i := 0; i < NumPoints; i++ {
		pips += int(v.o[i]) * (i + 1)
	}
	return pips
}

// Move moves one of o's checkers from one point to a lower one, hitting a
// lone x checker on the destination.
func (p Position) Move(from, to int) (Position, error) {
	if from < 1 || from > NumPoints || to < 1 || to > NumPoints {
		return p, fmt.Errorf("%w: %d/%d", ErrInvalidPoint, from, to)
	}
	if to >= from {
		return p, fmt.Errorf("%w: %d/%d", ErrBackwardMove, from, to)
	}
	if p.o[from-1] == 0 {
		return p, fmt.Errorf("%w: %d", ErrNoChecker, from)
	}
	if p.x[to-1] > 1 {
		return p, fmt.Errorf("%w: %d", ErrBlocked, to)
	}
	return p.move(from-1, to-1), nil
}

// Enter brings one of o's checkers in from the bar onto point to, which
// must lie in x's home board (o's points 19-24).
func (p Position) Enter(to int) (Position, error) {
	if to < BarPoint-6 || to > NumPoints {
		return p, fmt.Errorf("%w: cannot enter on %d", ErrInvalidPoint, to)
	}
	if p.oBar == 0 {
		return p, ErrEmptyBar
	}
	if p.x[to-1] > 1 {
		return p, fmt.Errorf("%w: %d", ErrBlocked, to)
	}
	return p.enter(to - 1), nil
}

// BearOff removes one of o's checkers from point from.
func (p Position) BearOff(from int) (Position, error) {
	if from < 1 || from > NumPoints {
		return p, fmt.Errorf("%w: %d", ErrInvalidPoint, from)
	}
	if !p.CanBearOff(O) {
		return p, ErrCannotBearOff
	}
	if p.o[from-1] == 0 {
		return p, fmt.Errorf("%w: %d", ErrNoChecker, from)
	}
	return p.bearOff(from - 1), nil
}

// move, enter and bearOff take 0-based indexes and assume the transition
// has already been checked.
func (p Position) move(from, to int) Position {
	p.o[from]--
	return p.land(to)
}

func (p Position) enter(to int) Position {
	p.oBar--
	return p.land(to)
}

func (p Position) land(to int) Position {
	if p.x[to] == 1 {
		p.x[to] = 0
		p.xBar++
	}
	p.o[to]++
	return p
}

func (p Position) bearOff(from int) Position {
	p.o[from]--
	p.oHome++
	return p
}

// Flip exchanges the sides: x becomes the mover and point i becomes 25-i.
func (p Position) Flip() Position {
	var f Position
	for i := 0; i < NumPoints; i++ {
		f.o[i] = p.x[NumPoints-1-i]
		f.x[i] = p.o[NumPoints-1-i]
	}
	f.oBar, f.xBar = p.xBar, p.oBar
	f.oHome, f.xHome = p.xHome, p.oHome
	return f
}

// Board converts to gnubg's TanBoard with o as the player on roll.
func (p Position) Board() positionid.Board {
	var b positionid.Board
	for i := 0; i < NumPoints; i++ {
		b[1][i] = p.o[i]
		b[0][NumPoints-1-i] = p.x[i]
	}
	b[1][positionid.BarSlot] = p.oBar
	b[0][positionid.BarSlot] = p.xBar
	return b
}

// FromBoard converts a TanBoard with the player on roll as o. Checkers
// missing from the board are taken to be borne off.
func FromBoard(b positionid.Board) (Position, error) {
	if err := positionid.Check(b); err != nil {
		return Position{}, fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	var p Position
	oCount, xCount := 0, 0
	for i := 0; i < NumPoints; i++ {
		p.o[i] = b[1][i]
		p.x[i] = b[0][NumPoints-1-i]
		oCount += int(p.o[i])
		xCount += int(p.x[i])
	}
	p.oBar = b[1][positionid.BarSlot]
	p.xBar = b[0][positionid.BarSlot]
	p.oHome = uint8(NumCheckers - oCount - int(p.oBar))
	p.xHome = uint8(NumCheckers - xCount - int(p.xBar))
	return p, p.validate()
}

// ID returns the gnubg position ID with o on roll.
func (p Position) ID() string {
	return positionid.Encode(p.Board())
}

// ParsePosition decodes a gnubg position ID, accepting the
// "positionID:matchID" form and ignoring the match part.
func ParsePosition(id string) (Position, error) {
	id = strings.TrimSpace(id)
	if i := strings.Index(id, ":"); i >= 0 {
		id = id[:i]
	}
	b, err := positionid.Decode(id)
	if err != nil {
		return Position{}, err
	}
	return FromBoard(b)
}

// String lists the occupied points, e.g. "o{6:5 8:3} x{1:2} bar 1/0 off 0/0".
func (p Position) String() string {
	var sb strings.Builder
	writeSide := func(name string, pts [NumPoints]uint8) {
		sb.WriteString(name)
		sb.WriteByte('{')
		first := true
		for i, n := range pts {
			if n == 0 {
				continue
			}
			if !first {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d:%d", i+1, n)
			first = false
		}
		sb.WriteByte('}')
	}
	writeSide("o", p.o)
	sb.WriteByte(' ')
	writeSide("x", p.x)
	fmt.Fprintf(&sb, " bar %d/%d off %d/%d", p.oBar, p.xBar, p.oHome, p.xHome)
	return sb.String()
}
