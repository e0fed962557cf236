package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourusername/bgrollout/pkg/engine"
)

const initialID = "4HPwATDgc/ABMA"

func getTestEngine() *engine.Engine {
	return engine.NewEngine(engine.EngineOptions{CacheSize: 256})
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *http.Response {
	t.Helper()
	var data []byte
	if s, ok := body.(string); ok {
		data = []byte(s)
	} else {
		data, _ = json.Marshal(body)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w.Result()
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestHealthHandler(t *testing.T) {
	h := NewHandlers(nil, "test-version")

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	h.Health(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	if health.Status != "ok" {
		t.Errorf("Status = %q, want %q", health.Status, "ok")
	}
	if health.Version != "test-version" {
		t.Errorf("Version = %q, want %q", health.Version, "test-version")
	}
	if health.Ready {
		t.Error("Expected ready = false without an engine")
	}
}

func TestHealthHandlerReady(t *testing.T) {
	h := NewHandlersWithPool(getTestEngine(), "1.0.0", NewWorkerPool(DefaultPoolConfig()))

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	h.Health(w, req)

	var health HealthResponse
	json.NewDecoder(w.Result().Body).Decode(&health)

	if !health.Ready {
		t.Error("Expected ready = true when engine is set")
	}
	if health.Pool == nil || health.Pool.MaxSlow != 4 {
		t.Errorf("Expected pool stats, got %+v", health.Pool)
	}
	if health.Cache == nil || health.Cache.Size != 256 {
		t.Errorf("Expected cache stats, got %+v", health.Cache)
	}
}

func TestMovesHandler(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "opening roll",
			body:       MovesRequest{Position: initialID, Dice: [2]int{3, 1}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "x to play",
			body:       MovesRequest{Position: initialID, Dice: [2]int{6, 6}, Side: "x"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty position",
			body:       MovesRequest{Dice: [2]int{3, 1}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_POSITION",
		},
		{
			name:       "invalid position",
			body:       MovesRequest{Position: "invalid!!!", Dice: [2]int{3, 1}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_POSITION",
		},
		{
			name:       "invalid dice",
			body:       MovesRequest{Position: initialID, Dice: [2]int{0, 7}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_DICE",
		},
		{
			name:       "invalid side",
			body:       MovesRequest{Position: initialID, Dice: [2]int{3, 1}, Side: "z"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_SIDE",
		},
		{
			name:       "invalid json",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, h.Moves, "/api/moves", tc.body)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("Status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantCode != "" {
				if e := decodeError(t, resp); e.Code != tc.wantCode {
					t.Errorf("Code = %q, want %q (%s)", e.Code, tc.wantCode, e.Error)
				}
				return
			}

			var moves MovesResponse
			if err := json.NewDecoder(resp.Body).Decode(&moves); err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if moves.NumLegal == 0 || len(moves.Candidates) != moves.NumLegal || moves.Pass {
				t.Errorf("NumLegal = %d with %d candidates", moves.NumLegal, len(moves.Candidates))
			}
			for _, c := range moves.Candidates {
				if _, err := engine.ParsePosition(c.Position); err != nil {
					t.Errorf("candidate %q does not decode: %v", c.Position, err)
				}
			}
		})
	}
}

func TestMovesHandlerMatchesGenerator(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")

	resp := postJSON(t, h.Moves, "/api/moves", MovesRequest{Position: initialID, Dice: [2]int{6, 5}})
	var moves MovesResponse
	if err := json.NewDecoder(resp.Body).Decode(&moves); err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	want := engine.LegalPositions(engine.Initial(), engine.MustDice(6, 5))
	if len(moves.Candidates) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(moves.Candidates), len(want))
	}
	for i, c := range moves.Candidates {
		if c.Position != want[i].ID() {
			t.Errorf("candidate %d = %s, want %s", i, c.Position, want[i].ID())
		}
		if c.PipsO != 167-11 || c.PipsX != 167 {
			t.Errorf("candidate %d pips = %d/%d, want 156/167", i, c.PipsO, c.PipsX)
		}
	}
}

func TestMovesHandlerPass(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")

	// o on the bar against a board closed on 19 with 6-6 to play.
	p := engine.MustPosition(
		engine.Points{6: 5, 8: 3, 13: 5, 24: 1},
		engine.Points{1: 2, 7: 2, 12: 2, 17: 2, 18: 2, 19: 5},
		1, 0, 0, 0,
	)
	resp := postJSON(t, h.Moves, "/api/moves", MovesRequest{Position: p.ID(), Dice: [2]int{6, 6}})

	var moves MovesResponse
	if err := json.NewDecoder(resp.Body).Decode(&moves); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !moves.Pass || moves.NumLegal != 0 {
		t.Errorf("Pass = %v, NumLegal = %d, want a pass", moves.Pass, moves.NumLegal)
	}
}

func TestRolloutHandler(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")
	h.SetMaxTrials(500)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "small rollout",
			body:       RolloutRequest{Position: initialID, Trials: 100, Seed: 42, Workers: 2},
			wantStatus: http.StatusOK,
		},
		{
			name:       "too many trials",
			body:       RolloutRequest{Position: initialID, Trials: 501},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_TRIALS",
		},
		{
			name:       "finished game",
			body:       RolloutRequest{Position: engine.MustPosition(nil, engine.Points{20: 15}, 0, 0, 15, 0).ID()},
			wantStatus: http.StatusBadRequest,
			wantCode:   "GAME_OVER",
		},
		{
			name:       "missing position",
			body:       RolloutRequest{Trials: 10},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_POSITION",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, h.Rollout, "/api/rollout", tc.body)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("Status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantCode != "" {
				if e := decodeError(t, resp); e.Code != tc.wantCode {
					t.Errorf("Code = %q, want %q (%s)", e.Code, tc.wantCode, e.Error)
				}
				return
			}

			var rollout RolloutResponse
			if err := json.NewDecoder(resp.Body).Decode(&rollout); err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if rollout.Trials != 100 {
				t.Errorf("Trials = %d, want 100", rollout.Trials)
			}
			if sum := rollout.OWin.Percent + rollout.XWin.Percent; sum < 99.999 || sum > 100.001 {
				t.Errorf("win percentages sum to %.3f", sum)
			}
			if rollout.OWin.CI95 <= 0 || rollout.OWin.StdErr <= 0 {
				t.Errorf("missing uncertainty: %+v", rollout.OWin)
			}
			if rollout.FirstToMove != "o" {
				t.Errorf("FirstToMove = %q, want o", rollout.FirstToMove)
			}
		})
	}
}

func TestRolloutHandlerBusy(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})
	h := NewHandlersWithPool(getTestEngine(), "1.0.0", pool)

	if !pool.TryAcquire(LaneSlow) {
		t.Fatal("Failed to fill the slow lane")
	}
	defer pool.Release(LaneSlow)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	body, _ := json.Marshal(RolloutRequest{Position: initialID, Trials: 10})
	req := httptest.NewRequest("POST", "/api/rollout", bytes.NewReader(body)).WithContext(ctx)
	w := httptest.NewRecorder()
	h.Rollout(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestReplayHandler(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")

	opening := []TurnJSON{
		{Side: "o", Dice: [2]int{3, 1}, Moves: []CheckerMoveJSON{{From: 8, To: 5}, {From: 6, To: 5}}},
		{Side: "x", Dice: [2]int{6, 4}, Moves: []CheckerMoveJSON{{From: 24, To: 18}, {From: 13, To: 9}}},
		{Side: "o", Dice: [2]int{6, 2}, Moves: []CheckerMoveJSON{{From: 13, To: 7, Hit: true}, {From: 13, To: 11}}},
		{Side: "x", Dice: [2]int{6, 6}},
	}

	t.Run("legal transcript", func(t *testing.T) {
		resp := postJSON(t, h.Replay, "/api/replay", ReplayRequest{Turns: opening})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Status = %d, want %d (%s)", resp.StatusCode, http.StatusOK, decodeError(t, resp).Error)
		}
		var replay ReplayResponse
		if err := json.NewDecoder(resp.Body).Decode(&replay); err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if len(replay.Positions) != 4 {
			t.Fatalf("Positions = %d, want 4", len(replay.Positions))
		}
		if replay.Final != replay.Positions[3] || replay.Result != "in progress" || replay.Winner != "" {
			t.Errorf("unexpected summary: %+v", replay)
		}
		final, err := engine.ParsePosition(replay.Final)
		if err != nil {
			t.Fatalf("final position does not decode: %v", err)
		}
		if final.Bar(engine.X) != 1 {
			t.Errorf("x should be on the bar: %v", final)
		}
	})

	t.Run("illegal move", func(t *testing.T) {
		bad := []TurnJSON{{Side: "o", Dice: [2]int{6, 4}, Moves: []CheckerMoveJSON{{From: 24, To: 18}}}}
		resp := postJSON(t, h.Replay, "/api/replay", ReplayRequest{Turns: bad})
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("Status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
		}
		if e := decodeError(t, resp); e.Code != "ILLEGAL_MOVE" {
			t.Errorf("Code = %q, want ILLEGAL_MOVE", e.Code)
		}
	})

	t.Run("bad side", func(t *testing.T) {
		bad := []TurnJSON{{Dice: [2]int{6, 4}}}
		resp := postJSON(t, h.Replay, "/api/replay", ReplayRequest{Turns: bad})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("game won", func(t *testing.T) {
		start := engine.MustPosition(engine.Points{1: 1}, engine.Points{24: 1}, 0, 0, 14, 14)
		turns := []TurnJSON{{Side: "o", Dice: [2]int{2, 1}, Moves: []CheckerMoveJSON{{From: 1, To: 0}}}}
		resp := postJSON(t, h.Replay, "/api/replay", ReplayRequest{Position: start.ID(), Turns: turns})
		var replay ReplayResponse
		if err := json.NewDecoder(resp.Body).Decode(&replay); err != nil {
			t.Fatalf("Decode error: %v", err)
		}
		if replay.Result != "single" || replay.Winner != "o" {
			t.Errorf("Result = %q, Winner = %q, want single/o", replay.Result, replay.Winner)
		}
	})
}

func TestRolloutSSE(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")
	server := httptest.NewServer(http.HandlerFunc(h.RolloutSSE))
	defer server.Close()

	resp, err := http.Get(server.URL + "?position=" + initialID + "&trials=100&seed=3&workers=2")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := map[string]int{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events[name]++
		}
	}
	if events["progress"] == 0 || events["result"] != 1 || events["done"] != 1 {
		t.Errorf("events = %v, want progress, one result and one done", events)
	}
	if events["error"] != 0 {
		t.Errorf("unexpected error event")
	}
}

func TestRolloutSSEBadPosition(t *testing.T) {
	h := NewHandlers(getTestEngine(), "1.0.0")

	req := httptest.NewRequest("GET", "/api/rollout/stream?position=bogus", nil)
	w := httptest.NewRecorder()
	h.RolloutSSE(w, req)

	if !strings.Contains(w.Body.String(), "event: error") {
		t.Errorf("expected an error event, got %q", w.Body.String())
	}
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(getTestEngine(), DefaultConfig(), "1.0.0")
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	resp, err = http.Get(server.URL + "/api/moves")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/moves status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

func dialTestWS(t *testing.T, h *Handlers) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(h.WebSocket))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("Status = %d, want %d", resp.StatusCode, http.StatusSwitchingProtocols)
	}
	return ws, func() {
		ws.Close()
		server.Close()
	}
}

func TestWebSocketPing(t *testing.T) {
	ws, done := dialTestWS(t, NewHandlers(getTestEngine(), "1.0.0"))
	defer done()

	msg := WSMessage{Type: "ping", ID: "test-ping-1"}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSResponse
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if resp.Type != "pong" {
		t.Errorf("Response type = %q, want %q", resp.Type, "pong")
	}
	if resp.ID != "test-ping-1" {
		t.Errorf("Response ID = %q, want %q", resp.ID, "test-ping-1")
	}
}

func TestWebSocketMoves(t *testing.T) {
	ws, done := dialTestWS(t, NewHandlers(getTestEngine(), "1.0.0"))
	defer done()

	payload, _ := json.Marshal(MovesRequest{Position: initialID, Dice: [2]int{4, 2}})
	if err := ws.WriteJSON(WSMessage{Type: "moves", ID: "moves-1", Payload: payload}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp struct {
		Type    string        `json:"type"`
		ID      string        `json:"id"`
		Payload MovesResponse `json:"payload"`
		Error   string        `json:"error"`
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if resp.Type != "result" || resp.ID != "moves-1" {
		t.Fatalf("Response = %s/%s (%s), want result/moves-1", resp.Type, resp.ID, resp.Error)
	}
	if resp.Payload.NumLegal == 0 {
		t.Error("Expected legal plays for 4-2")
	}
}

func TestWebSocketRollout(t *testing.T) {
	ws, done := dialTestWS(t, NewHandlers(getTestEngine(), "1.0.0"))
	defer done()

	payload, _ := json.Marshal(RolloutRequest{Position: initialID, Trials: 100, Seed: 5, Workers: 1})
	if err := ws.WriteJSON(WSMessage{Type: "rollout", ID: "ro-1", Payload: payload}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	progress := 0
	ws.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		var resp WSResponse
		if err := ws.ReadJSON(&resp); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if resp.ID != "ro-1" {
			t.Fatalf("Response ID = %q, want ro-1", resp.ID)
		}
		if resp.Type == "progress" {
			progress++
			continue
		}
		if resp.Type != "result" {
			t.Fatalf("Response type = %q (%s), want result", resp.Type, resp.Error)
		}
		break
	}
	if progress == 0 {
		t.Error("Expected progress messages before the result")
	}
}

func TestWebSocketErrors(t *testing.T) {
	ws, done := dialTestWS(t, NewHandlers(getTestEngine(), "1.0.0"))
	defer done()

	tests := []struct {
		name string
		msg  WSMessage
	}{
		{"unknown type", WSMessage{Type: "evaluate", ID: "e1"}},
		{"bad payload", WSMessage{Type: "moves", ID: "e2", Payload: json.RawMessage(`"x"`)}},
		{"bad position", WSMessage{Type: "rollout", ID: "e3", Payload: json.RawMessage(`{"position":"bogus"}`)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ws.WriteJSON(tc.msg); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			var resp WSResponse
			if err := ws.ReadJSON(&resp); err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if resp.Type != "error" || resp.ID != tc.msg.ID || resp.Error == "" {
				t.Errorf("Response = %+v, want an error for %s", resp, tc.msg.ID)
			}
		})
	}
}
