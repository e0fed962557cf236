package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/yourusername/bgrollout/pkg/engine"
	"github.com/yourusername/bgrollout/pkg/match"
)

// DefaultMaxTrials caps the trials a single request may ask for.
const DefaultMaxTrials = 100000

// Handlers holds the HTTP handlers and engine reference.
type Handlers struct {
	engine    *engine.Engine
	version   string
	pool      *WorkerPool
	maxTrials int
}

// NewHandlers creates a new Handlers instance without a worker pool.
func NewHandlers(e *engine.Engine, version string) *Handlers {
	return NewHandlersWithPool(e, version, nil)
}

// NewHandlersWithPool creates a new Handlers instance with a worker pool.
func NewHandlersWithPool(e *engine.Engine, version string, pool *WorkerPool) *Handlers {
	return &Handlers{
		engine:    e,
		version:   version,
		pool:      pool,
		maxTrials: DefaultMaxTrials,
	}
}

// SetMaxTrials changes the per-request trial cap.
func (h *Handlers) SetMaxTrials(n int) {
	if n > 0 {
		h.maxTrials = n
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// acquire takes a pool slot for the request. On failure it has already
// written the 503 response.
func (h *Handlers) acquire(w http.ResponseWriter, r *http.Request, l Lane) (release func(), ok bool) {
	if h.pool == nil {
		return func() {}, true
	}
	if err := h.pool.Acquire(r.Context(), l); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return nil, false
	}
	return func() { h.pool.Release(l) }, true
}

// requestError is a client error with its response code.
type requestError struct {
	code string
	err  error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(code string, err error) error {
	return &requestError{code: code, err: err}
}

// writeRequestError maps an error from the parse helpers to a response.
func writeRequestError(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		writeError(w, http.StatusBadRequest, re.Error(), re.code)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL")
}

func parsePosition(id string) (engine.Position, error) {
	if id == "" {
		return engine.Position{}, badRequest("MISSING_POSITION", errors.New("position is required"))
	}
	p, err := engine.ParsePosition(id)
	if err != nil {
		return engine.Position{}, badRequest("INVALID_POSITION", fmt.Errorf("invalid position ID: %w", err))
	}
	return p, nil
}

func parseDice(d [2]int) (engine.Dice, error) {
	dice, err := engine.NewDice(d[0], d[1])
	if err != nil {
		return engine.Dice{}, badRequest("INVALID_DICE", err)
	}
	return dice, nil
}

func parseSide(s string) (engine.Side, error) {
	side, err := engine.ParseSide(s)
	if err != nil {
		return engine.O, badRequest("INVALID_SIDE", err)
	}
	return side, nil
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Ready:   h.engine != nil,
	}

	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	if h.engine != nil {
		if stats, ok := h.engine.CacheStats(); ok {
			resp.Cache = &stats
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// listMoves generates the candidates for a moves request.
func (h *Handlers) listMoves(req MovesRequest) (MovesResponse, error) {
	p, err := parsePosition(req.Position)
	if err != nil {
		return MovesResponse{}, err
	}
	dice, err := parseDice(req.Dice)
	if err != nil {
		return MovesResponse{}, err
	}
	side, err := parseSide(req.Side)
	if err != nil {
		return MovesResponse{}, err
	}
	if p.IsOver() {
		return MovesResponse{}, badRequest("GAME_OVER", engine.ErrGameOver)
	}

	results := h.engine.LegalPositions(side, p, dice)
	resp := MovesResponse{
		Position:   req.Position,
		Dice:       req.Dice,
		Side:       side.String(),
		NumLegal:   len(results),
		Pass:       len(results) == 0,
		Candidates: make([]CandidateResponse, len(results)),
	}
	opp := side.Opponent()
	for i, q := range results {
		resp.Candidates[i] = CandidateResponse{
			Position: q.ID(),
			PipsO:    q.PipCount(engine.O),
			PipsX:    q.PipCount(engine.X),
			Hits:     q.Bar(opp) - p.Bar(opp),
			BornOff:  q.Home(side) - p.Home(side),
		}
	}
	return resp, nil
}

// Moves handles POST /api/moves
func (h *Handlers) Moves(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquire(w, r, LaneFast)
	if !ok {
		return
	}
	defer release()

	var req MovesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}

	resp, err := h.listMoves(req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// rolloutParams validates a rollout request.
func (h *Handlers) rolloutParams(req RolloutRequest) (engine.Position, engine.RolloutOptions, error) {
	p, err := parsePosition(req.Position)
	if err != nil {
		return p, engine.RolloutOptions{}, err
	}
	if p.IsOver() {
		return p, engine.RolloutOptions{}, badRequest("GAME_OVER", engine.ErrGameOver)
	}
	first, err := parseSide(req.Side)
	if err != nil {
		return p, engine.RolloutOptions{}, err
	}
	if req.Trials < 0 || req.Trials > h.maxTrials {
		return p, engine.RolloutOptions{}, badRequest("INVALID_TRIALS",
			fmt.Errorf("trials must be between 1 and %d", h.maxTrials))
	}
	if req.Workers < 0 {
		return p, engine.RolloutOptions{}, badRequest("INVALID_WORKERS", errors.New("workers must not be negative"))
	}
	return p, engine.RolloutOptions{
		Trials:      req.Trials,
		Seed:        req.Seed,
		Workers:     req.Workers,
		FirstToMove: first,
	}, nil
}

// Rollout handles POST /api/rollout
func (h *Handlers) Rollout(w http.ResponseWriter, r *http.Request) {
	// Rollouts are CPU-intensive and run in the slow lane
	release, ok := h.acquire(w, r, LaneSlow)
	if !ok {
		return
	}
	defer release()

	var req RolloutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}

	p, opts, err := h.rolloutParams(req)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	result, err := h.engine.Rollout(r.Context(), p, opts, nil)
	if err != nil {
		if r.Context().Err() != nil {
			writeError(w, http.StatusServiceUnavailable, "rollout cancelled", "CANCELLED")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "ROLLOUT_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, RolloutToResponse(p, opts.FirstToMove, result))
}

// BuildGame converts transcript turns to a match game. Turns keep their
// order whichever side plays them.
func BuildGame(turns []TurnJSON) (*match.Game, error) {
	g := &match.Game{Number: 1}
	for i, t := range turns {
		side, err := engine.ParseSide(t.Side)
		if err != nil || t.Side == "" {
			return nil, badRequest("INVALID_SIDE", fmt.Errorf("turn %d: side must be \"o\" or \"x\"", i+1))
		}
		dice, err := engine.NewDice(t.Dice[0], t.Dice[1])
		if err != nil {
			return nil, badRequest("INVALID_DICE", fmt.Errorf("turn %d: %w", i+1, err))
		}
		mv := match.Move{Dice: dice, Checkers: make([]engine.CheckerMove, len(t.Moves))}
		for j, c := range t.Moves {
			mv.Checkers[j] = engine.CheckerMove{From: c.From, To: c.To, Hit: c.Hit}
		}
		if side == engine.O {
			g.AddO(mv)
		} else {
			g.AddX(mv)
		}
	}
	return g, nil
}

// Replay handles POST /api/replay
func (h *Handlers) Replay(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquire(w, r, LaneFast)
	if !ok {
		return
	}
	defer release()

	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "INVALID_JSON")
		return
	}

	start := engine.Initial()
	if req.Position != "" {
		p, err := parsePosition(req.Position)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		start = p
	}

	g, err := BuildGame(req.Turns)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	positions, err := g.Replay(start)
	if err != nil {
		if errors.Is(err, match.ErrIllegalTurn) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "ILLEGAL_MOVE")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "REPLAY_ERROR")
		return
	}

	final := start
	resp := ReplayResponse{Positions: make([]string, len(positions))}
	for i, p := range positions {
		resp.Positions[i] = p.ID()
		final = p
	}
	out := match.Classify(final)
	resp.Final = final.ID()
	resp.Result = out.Result.String()
	if out.Result != match.ResultInProgress {
		resp.Winner = out.Winner.String()
	}
	writeJSON(w, http.StatusOK, resp)
}
