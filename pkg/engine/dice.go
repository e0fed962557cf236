package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidDie is returned for a die value outside 1-6.
var ErrInvalidDie = errors.New("die value must be 1-6")

// Source is the randomness behind dice rolls and rollout move choice.
// *math/rand.Rand satisfies it. A Source is not shared between goroutines.
type Source interface {
	// Intn returns a uniform int in [0, n).
	Intn(n int) int
}

// Dice is one roll of two dice, stored high die first. Two Dice values are
// equal whenever they hold the same pair of numbers.
type Dice struct {
	high uint8
	low  uint8
}

// NewDice returns the roll a-b.
func NewDice(a, b int) (Dice, error) {
	if a < 1 || a > 6 {
		return Dice{}, fmt.Errorf("%w: %d", ErrInvalidDie, a)
	}
	if b < 1 || b > 6 {
		return Dice{}, fmt.Errorf("%w: %d", ErrInvalidDie, b)
	}
	if a < b {
		a, b = b, a
	}
	return Dice{high: uint8(a), low: uint8(b)}, nil
}

// MustDice is like NewDice but panics on invalid input.
func MustDice(a, b int) Dice {
	d, err := NewDice(a, b)
	if err != nil {
		panic(err)
	}
	return d
}

// RollDice draws one of the 36 equally likely ordered outcomes.
func RollDice(src Source) Dice {
	r := src.Intn(36)
	return MustDice(r%6+1, r/6+1)
}

// AllRolls returns the 21 distinct rolls, doubles included.
func AllRolls() []Dice {
	rolls := make([]Dice, 0, 21)
	for high := 1; high <= 6; high++ {
		for low := 1; low <= high; low++ {
			rolls = append(rolls, Dice{high: uint8(high), low: uint8(low)})
		}
	}
	return rolls
}

// High returns the larger die.
func (d Dice) High() int { return int(d.high) }

// Low returns the smaller die.
func (d Dice) Low() int { return int(d.low) }

// IsDouble reports whether both dice show the same number.
func (d Dice) IsDouble() bool { return d.high == d.low }

// Probability is the chance of this roll on a single throw.
func (d Dice) Probability() float64 {
	if d.IsDouble() {
		return 1.0 / 36
	}
	return 2.0 / 36
}

// String renders the roll as "6-4".
func (d Dice) String() string {
	return fmt.Sprintf("%d-%d", d.high, d.low)
}
