package engine

import (
	"errors"
	"math/rand"
	"testing"
)

func TestInitialPosition(t *testing.T) {
	p := Initial()

	if got := p.Checkers(O, 6); got != 5 {
		t.Errorf("o on 6 = %d, want 5", got)
	}
	if got := p.Checkers(X, 19); got != 5 {
		t.Errorf("x on 19 = %d, want 5", got)
	}
	if p.Bar(O) != 0 || p.Bar(X) != 0 || p.Home(O) != 0 || p.Home(X) != 0 {
		t.Errorf("initial position has checkers on the bar or off: %v", p)
	}
	if p.PipCount(O) != 167 || p.PipCount(X) != 167 {
		t.Errorf("pip counts = %d/%d, want 167/167", p.PipCount(O), p.PipCount(X))
	}
	if p.CanBearOff(O) || p.CanBearOff(X) {
		t.Error("nobody can bear off from the initial position")
	}
	if p.IsOver() {
		t.Error("initial position should not be over")
	}
}

func TestNewPositionRejectsInvalidLayouts(t *testing.T) {
	tests := []struct {
		name string
		o, x Points
		bars [4]int
	}{
		{"too few o checkers", Points{6: 14}, Points{19: 15}, [4]int{}},
		{"too many x checkers", Points{6: 15}, Points{19: 15, 20: 1}, [4]int{}},
		{"shared point", Points{6: 14, 19: 1}, Points{19: 15}, [4]int{}},
		{"point zero", Points{0: 15}, Points{19: 15}, [4]int{}},
		{"point 25", Points{25: 15}, Points{19: 15}, [4]int{}},
		{"negative bar", Points{6: 15}, Points{19: 15}, [4]int{-1, 0, 1, 0}},
		{"bar counted twice", Points{6: 15}, Points{19: 15}, [4]int{1, 0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPosition(tc.o, tc.x, tc.bars[0], tc.bars[1], tc.bars[2], tc.bars[3])
			if !errors.Is(err, ErrInvalidPosition) {
				t.Errorf("error = %v, want ErrInvalidPosition", err)
			}
		})
	}
}

func TestNewPositionIgnoresZeroCounts(t *testing.T) {
	p, err := NewPosition(
		Points{0: 0, 6: 5, 8: 3, 13: 5, 24: 2, 25: 0},
		Points{1: 2, 2: 0, 12: 5, 17: 3, 19: 5},
		0, 0, 0, 0,
	)
	if err != nil {
		t.Fatalf("NewPosition error: %v", err)
	}
	if p != Initial() {
		t.Errorf("Position = %s, want the initial position", p)
	}
}

func TestMustPositionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustPosition should panic on an invalid layout")
		}
	}()
	MustPosition(Points{6: 1}, Points{19: 15}, 0, 0, 0, 0)
}

func TestFlipInvolution(t *testing.T) {
	if Initial().Flip() != Initial() {
		t.Error("initial position should be a fixed point of Flip")
	}

	p := MustPosition(
		Points{6: 5, 8: 3, 13: 5, 24: 1},
		Points{1: 2, 7: 2, 12: 2, 17: 2, 18: 2, 19: 5},
		1, 0, 0, 0,
	)
	if p.Flip() == p {
		t.Error("asymmetric position should change under Flip")
	}
	if p.Flip().Flip() != p {
		t.Error("Flip twice should return the original position")
	}

	f := p.Flip()
	if f.Bar(X) != 1 || f.Bar(O) != 0 {
		t.Errorf("bars not swapped: %v", f)
	}
	if f.Checkers(X, 19) != 5 || f.Checkers(O, 6) != 5 {
		t.Errorf("points not mirrored: %v", f)
	}
}

func TestMoveHitsBlot(t *testing.T) {
	p := MustPosition(Points{13: 15}, Points{7: 1, 1: 14}, 0, 0, 0, 0)

	q, err := p.Move(13, 7)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if q.Checkers(O, 7) != 1 || q.Checkers(O, 13) != 14 {
		t.Errorf("checker not moved: %v", q)
	}
	if q.Checkers(X, 7) != 0 || q.Bar(X) != 1 {
		t.Errorf("blot not hit: %v", q)
	}
	if p.Checkers(O, 13) != 15 {
		t.Error("Move mutated its receiver")
	}
}

func TestTransitionErrors(t *testing.T) {
	p := MustPosition(Points{13: 14, 8: 1}, Points{7: 2, 1: 13}, 0, 0, 0, 0)

	tests := []struct {
		name string
		do   func() (Position, error)
		want error
	}{
		{"no checker", func() (Position, error) { return p.Move(12, 10) }, ErrNoChecker},
		{"blocked", func() (Position, error) { return p.Move(13, 7) }, ErrBlocked},
		{"backward", func() (Position, error) { return p.Move(8, 10) }, ErrBackwardMove},
		{"off board", func() (Position, error) { return p.Move(26, 10) }, ErrInvalidPoint},
		{"empty bar", func() (Position, error) { return p.Enter(20) }, ErrEmptyBar},
		{"enter outside home", func() (Position, error) { return p.Enter(10) }, ErrInvalidPoint},
		{"bear off too early", func() (Position, error) { return p.BearOff(8) }, ErrCannotBearOff},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.do()
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
			if q != p {
				t.Error("failed transition should return the receiver unchanged")
			}
		})
	}
}

func TestEnterAndBearOff(t *testing.T) {
	p := MustPosition(Points{6: 14}, Points{20: 1, 1: 14}, 1, 0, 0, 0)

	q, err := p.Enter(20)
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if q.Bar(O) != 0 || q.Checkers(O, 20) != 1 || q.Bar(X) != 1 {
		t.Errorf("unexpected position after entering: %v", q)
	}

	home := MustPosition(Points{1: 2, 6: 3}, Points{24: 15}, 0, 0, 10, 0)
	r, err := home.BearOff(6)
	if err != nil {
		t.Fatalf("BearOff failed: %v", err)
	}
	if r.Home(O) != 11 || r.Checkers(O, 6) != 2 {
		t.Errorf("unexpected position after bearing off: %v", r)
	}
	if _, err := home.BearOff(4); !errors.Is(err, ErrNoChecker) {
		t.Errorf("BearOff(empty point) error = %v, want ErrNoChecker", err)
	}
}

func TestWinPredicates(t *testing.T) {
	tests := []struct {
		name                    string
		p                       Position
		win, gammon, backgammon bool
	}{
		{
			name: "single win",
			p:    MustPosition(nil, Points{20: 10}, 0, 0, 15, 5),
			win:  true,
		},
		{
			name:   "gammon",
			p:      MustPosition(nil, Points{20: 15}, 0, 0, 15, 0),
			win:    true,
			gammon: true,
		},
		{
			name:       "backgammon from home board",
			p:          MustPosition(nil, Points{3: 1, 20: 14}, 0, 0, 15, 0),
			win:        true,
			gammon:     true,
			backgammon: true,
		},
		{
			name:       "backgammon from bar",
			p:          MustPosition(nil, Points{20: 14}, 0, 1, 15, 0),
			win:        true,
			gammon:     true,
			backgammon: true,
		},
		{
			name: "not over",
			p:    Initial(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.HasWon(O); got != tc.win {
				t.Errorf("HasWon = %v, want %v", got, tc.win)
			}
			if got := tc.p.HasGammoned(O); got != tc.gammon {
				t.Errorf("HasGammoned = %v, want %v", got, tc.gammon)
			}
			if got := tc.p.HasBackgammoned(O); got != tc.backgammon {
				t.Errorf("HasBackgammoned = %v, want %v", got, tc.backgammon)
			}

			// The same outcome seen from the other side.
			f := tc.p.Flip()
			if f.HasWon(X) != tc.win || f.HasGammoned(X) != tc.gammon || f.HasBackgammoned(X) != tc.backgammon {
				t.Errorf("flipped predicates disagree for %v", f)
			}
			if f.HasWon(O) {
				t.Error("loser reported as winner")
			}
		})
	}
}

func TestPositionIDRoundTrip(t *testing.T) {
	if id := Initial().ID(); id != "4HPwATDgc/ABMA" {
		t.Errorf("Initial().ID() = %s, want 4HPwATDgc/ABMA", id)
	}

	p := MustPosition(
		Points{2: 1, 6: 5, 8: 2, 13: 5, 20: 1},
		Points{1: 2, 7: 2, 12: 2, 17: 2, 18: 2, 19: 3},
		0, 1, 1, 1,
	)
	q, err := ParsePosition(p.ID() + ":cIkqAAAAAAAA")
	if err != nil {
		t.Fatalf("ParsePosition failed: %v", err)
	}
	if q != p {
		t.Errorf("round trip mismatch\nGot:      %v\nExpected: %v", q, p)
	}

	if _, err := ParsePosition("nonsense"); err == nil {
		t.Error("ParsePosition should reject a short ID")
	}
}

// TestInvariantsUnderRandomPlay walks random games and checks every
// position the generator produces.
func TestInvariantsUnderRandomPlay(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for game := 0; game < 50; game++ {
		p := Initial()
		side := O
		for turn := 0; !p.IsOver(); turn++ {
			if turn > 5000 {
				t.Fatalf("game %d did not finish", game)
			}
			candidates := LegalPositionsFor(side, p, RollDice(rng))
			for _, c := range candidates {
				if err := c.validate(); err != nil {
					t.Fatalf("generated invalid position %v: %v", c, err)
				}
				if c.PipCount(side) >= p.PipCount(side) {
					t.Fatalf("mover's pip count did not drop: %v -> %v", p, c)
				}
			}
			if len(candidates) > 0 {
				p = candidates[rng.Intn(len(candidates))]
			}
			side = side.Opponent()
		}
	}
}
