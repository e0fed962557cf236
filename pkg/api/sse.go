package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yourusername/bgrollout/pkg/engine"
)

// RolloutSSE handles Server-Sent Events for streaming rollout progress.
// GET /api/rollout/stream?position=...&trials=...&seed=...&workers=...&side=...
func (h *Handlers) RolloutSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeSSEError(w, "streaming not supported")
		return
	}

	query := r.URL.Query()
	req := RolloutRequest{
		Position: query.Get("position"),
		Trials:   parseIntParam(query.Get("trials"), 0),
		Seed:     parseInt64Param(query.Get("seed"), 0),
		Workers:  parseIntParam(query.Get("workers"), 0),
		Side:     query.Get("side"),
	}
	p, opts, err := h.rolloutParams(req)
	if err != nil {
		writeSSEError(w, err.Error())
		return
	}

	if h.pool != nil {
		if err := h.pool.Acquire(r.Context(), LaneSlow); err != nil {
			writeSSEError(w, "server busy")
			return
		}
		defer h.pool.Release(LaneSlow)
	}

	callback := func(pr engine.RolloutProgress) {
		writeSSEEvent(w, "progress", ProgressToResponse(pr))
		flusher.Flush()
	}

	result, err := h.engine.Rollout(r.Context(), p, opts, callback)
	if err != nil {
		writeSSEError(w, "rollout failed: "+err.Error())
		return
	}

	writeSSEEvent(w, "result", RolloutToResponse(p, opts.FirstToMove, result))
	flusher.Flush()

	// Send done event to signal completion
	writeSSEEvent(w, "done", nil)
	flusher.Flush()
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}

// writeSSEError writes an error event and closes the stream.
func writeSSEError(w http.ResponseWriter, message string) {
	writeSSEEvent(w, "error", ErrorResponse{Error: message})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// parseIntParam parses an integer from a string with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// parseInt64Param is parseIntParam for 64-bit values such as seeds.
func parseInt64Param(s string, defaultVal int64) int64 {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultVal
	}
	return val
}
