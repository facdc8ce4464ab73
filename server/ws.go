package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	// keep under common proxy idle timeouts
	wsPingInterval = 25 * time.Second
	wsReadLimit    = 1 << 12
	wsSendBuffer   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Bearer auth gates the handshake; origin checks belong to the
	// deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	user *accessClaims
	send chan []byte
}

// wsRequest is the client-to-server frame.
type wsRequest struct {
	Action  string `json:"action"` // "board:join" | "board:leave"
	BoardID int64  `json:"boardId"`
}

// GET /api/ws?token=...
//
// The handshake carries the same short-lived bearer token as REST calls
// and is verified with the same rule; a bad token is rejected with 401
// before the upgrade so the client can refresh and retry.
func (a *api) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := verifyAccessToken(token, a.accessSecret())
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		a.log.Error("ws upgrade", "err", err)
		return
	}
	c := &wsClient{hub: a.hub, conn: conn, user: claims, send: make(chan []byte, wsSendBuffer)}
	go c.writePump()
	a.readPump(r.Context(), c)
}

// readPump consumes frames until the connection drops. A disconnect
// implicitly leaves every room; no one else has to clean up.
func (a *api) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		c.hub.drop(c)
		close(c.send)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		switch req.Action {
		case "board:join":
			a.wsJoin(ctx, c, req.BoardID)
		case "board:leave":
			// idempotent, never acked as a failure
			c.hub.leave(req.BoardID, c)
		}
	}
}

// wsJoin runs the same membership predicate as the REST handlers before
// subscribing the connection. A denied join keeps the connection open.
func (a *api) wsJoin(ctx context.Context, c *wsClient, boardID int64) {
	b, err := a.store.GetBoardWithMembers(ctx, boardID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.ack(boardID, false, "not_found")
		return
	case err != nil:
		a.log.Error("ws join", "err", err)
		c.ack(boardID, false, "internal")
		return
	}
	if !boardAllowsUser(&b, c.user.UserID()) {
		c.ack(boardID, false, "forbidden")
		return
	}
	c.hub.join(boardID, c)
	c.ack(boardID, true, "")
}

func (c *wsClient) ack(boardID int64, ok bool, reason string) {
	msg, err := json.Marshal(wsEvent{Event: "board:join", BoardID: boardID, OK: &ok, Error: reason})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump serializes all outbound frames for one connection and keeps
// it alive with pings (deadline discipline per gorilla's guidance).
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
