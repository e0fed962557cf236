// Package api provides an HTTP/JSON front end to the move generator and
// the rollout simulator.
package api

import "github.com/yourusername/bgrollout/pkg/engine"

// ============================================================================
// Request Types
// ============================================================================

// MovesRequest is the request body for listing legal plays.
type MovesRequest struct {
	Position string `json:"position"`       // Position ID (gnubg format, o's view)
	Dice     [2]int `json:"dice"`           // Dice roll [die1, die2]
	Side     string `json:"side,omitempty"` // "o" (default) or "x"
}

// RolloutRequest is the request body for random-play rollouts.
type RolloutRequest struct {
	Position string `json:"position"`          // Position ID
	Trials   int    `json:"trials,omitempty"`  // Number of trials (default 1000)
	Seed     int64  `json:"seed,omitempty"`    // Random seed (0 = random)
	Workers  int    `json:"workers,omitempty"` // Parallel workers (0 = server default)
	Side     string `json:"side,omitempty"`    // Side that rolls first (default "o")
}

// CheckerMoveJSON is one checker's move in the mover's numbering. From 25
// enters from the bar; To 0 bears off.
type CheckerMoveJSON struct {
	From int  `json:"from"`
	To   int  `json:"to"`
	Hit  bool `json:"hit,omitempty"`
}

// TurnJSON is one recorded play.
type TurnJSON struct {
	Side  string            `json:"side"`  // "o" or "x"
	Dice  [2]int            `json:"dice"`  // Dice rolled
	Moves []CheckerMoveJSON `json:"moves"` // Empty when the roll was passed
}

// ReplayRequest is the request body for verifying a game transcript.
type ReplayRequest struct {
	Position string     `json:"position,omitempty"` // Start position ID (default: initial)
	Turns    []TurnJSON `json:"turns"`              // Plays in order
}

// ============================================================================
// Response Types
// ============================================================================

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`          // Error message
	Code  string `json:"code,omitempty"` // Error code
}

// HealthResponse is the response for health checks.
type HealthResponse struct {
	Status  string             `json:"status"`          // "ok"
	Version string             `json:"version"`         // API version
	Ready   bool               `json:"ready"`           // Engine attached
	Pool    *PoolStats         `json:"pool,omitempty"`  // Worker pool statistics
	Cache   *engine.CacheStats `json:"cache,omitempty"` // Move cache statistics
}

// CandidateResponse is one legal resulting position.
type CandidateResponse struct {
	Position string `json:"position"` // Resulting position ID
	PipsO    int    `json:"pips_o"`   // o's pip count after the play
	PipsX    int    `json:"pips_x"`   // x's pip count after the play
	Hits     int    `json:"hits"`     // Opponent checkers sent to the bar
	BornOff  int    `json:"born_off"` // Checkers borne off by the play
}

// MovesResponse is the response for legal play listing.
type MovesResponse struct {
	Position   string              `json:"position"`   // Input position ID
	Dice       [2]int              `json:"dice"`       // Dice as given
	Side       string              `json:"side"`       // Side to play
	NumLegal   int                 `json:"num_legal"`  // Number of distinct results
	Pass       bool                `json:"pass"`       // No legal play
	Candidates []CandidateResponse `json:"candidates"` // Results in generation order
}

// RateResponse is an estimated probability with its uncertainty.
type RateResponse struct {
	Percent float64 `json:"percent"` // Estimate (0-100)
	StdErr  float64 `json:"std_err"` // Standard error, in percent
	CI95    float64 `json:"ci95"`    // 95% confidence half-width, in percent
}

// RolloutResponse is the response for rollouts.
type RolloutResponse struct {
	Position    string       `json:"position"`      // Start position ID
	FirstToMove string       `json:"first_to_move"` // Side that rolled first
	Trials      int          `json:"trials"`        // Trials completed
	OWin        RateResponse `json:"o_win"`
	OGammon     RateResponse `json:"o_gammon"`
	OBackgammon RateResponse `json:"o_backgammon"`
	XWin        RateResponse `json:"x_win"`
	XGammon     RateResponse `json:"x_gammon"`
	XBackgammon RateResponse `json:"x_backgammon"`
	MeanTurns   float64      `json:"mean_turns"`   // Average game length
	TurnsStdDev float64      `json:"turns_stddev"` // Game length spread
	LongestGame int          `json:"longest_game"` // Longest game in turns
}

// ReplayResponse is the response for a verified transcript.
type ReplayResponse struct {
	Positions []string `json:"positions"`        // Position ID after each play
	Final     string   `json:"final"`            // Final position ID
	Result    string   `json:"result"`           // "in progress", "single", "gammon" or "backgammon"
	Winner    string   `json:"winner,omitempty"` // Winning side once the game is over
}

// ============================================================================
// Streaming Types
// ============================================================================

// RolloutProgressResponse is sent while a rollout runs.
type RolloutProgressResponse struct {
	TrialsCompleted int     `json:"trials_completed"`
	TrialsTotal     int     `json:"trials_total"`
	Percent         float64 `json:"percent"`
	OWin            float64 `json:"o_win"`    // Current o win rate, in percent
	OWinCI          float64 `json:"o_win_ci"` // Current 95% half-width, in percent
}

// rateResponse converts a rollout rate to percentages.
func rateResponse(r *engine.RolloutResult, rate float64) RateResponse {
	return RateResponse{
		Percent: rate * 100,
		StdErr:  r.StdErr(rate) * 100,
		CI95:    r.CI(rate, 0.95) * 100,
	}
}

// RolloutToResponse converts a rollout result to its JSON form.
func RolloutToResponse(start engine.Position, first engine.Side, r *engine.RolloutResult) RolloutResponse {
	return RolloutResponse{
		Position:    start.ID(),
		FirstToMove: first.String(),
		Trials:      r.Trials,
		OWin:        rateResponse(r, r.OWin),
		OGammon:     rateResponse(r, r.OGammon),
		OBackgammon: rateResponse(r, r.OBackgammon),
		XWin:        rateResponse(r, r.XWin),
		XGammon:     rateResponse(r, r.XGammon),
		XBackgammon: rateResponse(r, r.XBackgammon),
		MeanTurns:   r.MeanTurns,
		TurnsStdDev: r.TurnsStdDev,
		LongestGame: r.LongestGame,
	}
}

// ProgressToResponse converts rollout progress to its JSON form.
func ProgressToResponse(p engine.RolloutProgress) RolloutProgressResponse {
	return RolloutProgressResponse{
		TrialsCompleted: p.TrialsCompleted,
		TrialsTotal:     p.TrialsTotal,
		Percent:         p.Percent,
		OWin:            p.OWin * 100,
		OWinCI:          p.OWinCI * 100,
	}
}
