package main

import (
	"encoding/json"
	"sync"
)

// wsEvent is the server-to-client frame. Board mutations arrive as
// list:created|updated|deleted and card:created|updated|moved|deleted,
// acks reuse the same shape with OK set.
type wsEvent struct {
	Event   string `json:"event"`
	BoardID int64  `json:"boardId"`
	Data    any    `json:"data,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Hub tracks which connections are subscribed to which board room. It is
// owned by the api value: created at startup, torn down with the process,
// and reachable only through Broadcast and the join/leave calls in ws.go.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*wsClient]struct{}
}

func NewHub() *Hub { return &Hub{rooms: make(map[int64]map[*wsClient]struct{})} }

func (h *Hub) join(boardID int64, c *wsClient) {
	h.mu.Lock()
	if h.rooms[boardID] == nil {
		h.rooms[boardID] = make(map[*wsClient]struct{})
	}
	h.rooms[boardID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) leave(boardID int64, c *wsClient) {
	h.mu.Lock()
	if room, ok := h.rooms[boardID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, boardID)
		}
	}
	h.mu.Unlock()
}

// drop removes the connection from every room. After it returns no
// Broadcast can reach the client, so its send channel may be closed.
func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	for boardID, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, boardID)
		}
	}
	h.mu.Unlock()
}

// Broadcast pushes an event to every connection in the board's room,
// including the originator: clients must tolerate their own echo. Slow
// consumers get dropped frames rather than stalling the handler; such a
// client re-fetches state after reconnecting anyway.
func (h *Hub) Broadcast(boardID int64, event string, data any) {
	msg, err := json.Marshal(wsEvent{Event: event, BoardID: boardID, Data: data})
	if err != nil {
		return
	}
	h.mu.RLock()
	for c := range h.rooms[boardID] {
		select {
		case c.send <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) roomSize(boardID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}
