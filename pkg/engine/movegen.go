package engine

// MaxDieUses is the number of times a double may be played.
const MaxDieUses = 4

// positionSet collects distinct positions in first-seen order. The order
// matters: rollouts pick candidates by index, so it must not depend on
// map iteration.
type positionSet struct {
	seen  map[Position]struct{}
	items []Position
}

func newPositionSet(capacity int) *positionSet {
	return &positionSet{
		seen:  make(map[Position]struct{}, capacity),
		items: make([]Position, 0, capacity),
	}
}

func (s *positionSet) add(p Position) {
	if _, ok := s.seen[p]; ok {
		return
	}
	s.seen[p] = struct{}{}
	s.items = append(s.items, p)
}

func (s *positionSet) addAll(ps []Position) {
	for _, p := range ps {
		s.add(p)
	}
}

func (s *positionSet) len() int { return len(s.items) }

// LegalPositions returns every distinct position o can reach by playing a
// full turn with the given roll. An empty result means o must pass.
func LegalPositions(p Position, d Dice) []Position {
	if d.IsDouble() {
		return doubleMoves(p, d.High())
	}
	return mixedMoves(p, d)
}

// LegalPositionsFor is LegalPositions for either side. X's moves are
// generated on the flipped board and flipped back.
func LegalPositionsFor(side Side, p Position, d Dice) []Position {
	if side == O {
		return LegalPositions(p, d)
	}
	results := LegalPositions(p.Flip(), d)
	for i := range results {
		results[i] = results[i].Flip()
	}
	return results
}

// mixedMoves plays both dice in both orders. When no order uses both, the
// higher die is played if possible, else the lower one.
func mixedMoves(p Position, d Dice) []Position {
	highFirst := oneDieMoves(p, d.High())
	lowFirst := oneDieMoves(p, d.Low())

	set := newPositionSet(len(highFirst) * len(lowFirst))
	for _, mid := range highFirst {
		set.addAll(oneDieMoves(mid, d.Low()))
	}
	for _, mid := range lowFirst {
		set.addAll(oneDieMoves(mid, d.High()))
	}

	if set.len() > 0 {
		return set.items
	}
	if len(highFirst) > 0 {
		return dedupe(highFirst)
	}
	return dedupe(lowFirst)
}

// doubleMoves expands the reachable set one die at a time and keeps the
// last non-empty ply, so the maximum number of dice is always used.
func doubleMoves(p Position, die int) []Position {
	current := dedupe(oneDieMoves(p, die))
	for ply := 2; ply <= MaxDieUses && len(current) > 0; ply++ {
		next := newPositionSet(len(current) * 4)
		for _, pos := range current {
			next.addAll(oneDieMoves(pos, die))
		}
		if next.len() == 0 {
			break
		}
		current = next.items
	}
	return current
}

func dedupe(ps []Position) []Position {
	if len(ps) == 0 {
		return nil
	}
	set := newPositionSet(len(ps))
	set.addAll(ps)
	return set.items
}

// oneDieMoves lists the positions reachable by moving a single o checker
// by die pips. Checkers on a point are interchangeable, so each source
// point contributes at most one result.
func oneDieMoves(p Position, die int) []Position {
	// A checker on the bar must enter before anything else moves.
	if p.oBar > 0 {
		to := BarPoint - die - 1
		if p.x[to] > 1 {
			return nil
		}
		return []Position{p.enter(to)}
	}

	var results []Position
	for from := NumPoints - 1; from >= die; from-- {
		if p.o[from] == 0 {
			continue
		}
		to := from - die
		if p.x[to] <= 1 {
			results = append(results, p.move(from, to))
		}
	}

	if !p.CanBearOff(O) {
		return results
	}

	// Point i+1 bears off with an exact die, or with a larger die when no
	// checker sits on a higher home point.
	seenHigher := false
	for i := 5; i >= 0; i-- {
		if p.o[i] == 0 {
			continue
		}
		switch point := i + 1; {
		case point == die:
			results = append(results, p.bearOff(i))
		case point < die && !seenHigher:
			results = append(results, p.bearOff(i))
		}
		seenHigher = true
	}
	return results
}
