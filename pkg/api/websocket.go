package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yourusername/bgrollout/pkg/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`    // Message type: "moves", "rollout", "ping"
	ID      string          `json:"id"`      // Request ID for correlating responses
	Payload json.RawMessage `json:"payload"` // Type-specific payload
}

// WSResponse is a generic WebSocket response.
type WSResponse struct {
	Type    string `json:"type"`              // Response type: "result", "progress", "error", "pong"
	ID      string `json:"id,omitempty"`      // Request ID
	Payload any    `json:"payload,omitempty"` // Response data
	Error   string `json:"error,omitempty"`   // Error message if any
}

// WSClient represents a connected WebSocket client. Rollouts run in their
// own goroutines so a long simulation does not hold up pings or move
// requests on the same connection.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	sendChan chan WSResponse
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// WebSocket handles WebSocket connections for move listing and rollouts.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	// The request context ends with server shutdown; unblock the reader then.
	ctx, cancel := context.WithCancel(r.Context())
	context.AfterFunc(ctx, func() { conn.Close() })
	client := &WSClient{
		conn:     conn,
		handlers: h,
		sendChan: make(chan WSResponse, 256),
		ctx:      ctx,
		cancel:   cancel,
	}
	go client.writePump()
	client.readPump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for msg := range c.sendChan {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.cancel()
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.cancel()
		c.inflight.Wait()
		close(c.sendChan)
		c.conn.Close()
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

// send queues a response unless the connection is shutting down.
func (c *WSClient) send(resp WSResponse) {
	select {
	case c.sendChan <- resp:
	case <-c.ctx.Done():
	}
}

func (c *WSClient) sendError(id, msg string) {
	c.send(WSResponse{Type: "error", ID: id, Error: msg})
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "moves":
		c.handleMoves(msg)
	case "rollout":
		c.handleRollout(msg)
	case "ping":
		c.send(WSResponse{Type: "pong", ID: msg.ID})
	default:
		c.sendError(msg.ID, "unknown message type")
	}
}

func (c *WSClient) handleMoves(msg WSMessage) {
	var req MovesRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}
	if pool := c.handlers.pool; pool != nil {
		if err := pool.Acquire(c.ctx, LaneFast); err != nil {
			c.sendError(msg.ID, "server busy")
			return
		}
		defer pool.Release(LaneFast)
	}
	resp, err := c.handlers.listMoves(req)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: resp})
}

func (c *WSClient) handleRollout(msg WSMessage) {
	var req RolloutRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendError(msg.ID, "invalid payload")
		return
	}
	p, opts, err := c.handlers.rolloutParams(req)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		if pool := c.handlers.pool; pool != nil {
			if err := pool.Acquire(c.ctx, LaneSlow); err != nil {
				c.sendError(msg.ID, "server busy")
				return
			}
			defer pool.Release(LaneSlow)
		}

		progress := func(pr engine.RolloutProgress) {
			c.send(WSResponse{Type: "progress", ID: msg.ID, Payload: ProgressToResponse(pr)})
		}
		result, err := c.handlers.engine.Rollout(c.ctx, p, opts, progress)
		if err != nil {
			c.sendError(msg.ID, "rollout failed: "+err.Error())
			return
		}
		c.send(WSResponse{Type: "result", ID: msg.ID, Payload: RolloutToResponse(p, opts.FirstToMove, result)})
	}()
}
