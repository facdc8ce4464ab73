package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

// nullableID distinguishes an absent assigneeId from an explicit null,
// which clears the assignment.
type nullableID struct {
	Set   bool
	Value *int64
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (a *api) handleCardsByBoard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	if _, err := a.memberBoard(r, id, u.UserID()); err != nil {
		a.fail(w, err, "cards by board")
		return
	}
	cards, err := a.store.CardsByBoard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "cards by board")
		return
	}
	writeJSON(w, 200, map[string]any{"cards": cards})
}

func (a *api) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	l, err := a.store.GetList(r.Context(), id)
	if err != nil {
		a.fail(w, err, "create card")
		return
	}
	if _, err := a.memberBoard(r, l.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "create card")
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		AssigneeID  *int64 `json:"assigneeId"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeError(w, 400, "title is required")
		return
	}
	c, err := a.store.CreateCard(r.Context(), id, strings.TrimSpace(req.Title), req.Description, req.AssigneeID)
	if err != nil {
		a.fail(w, err, "create card")
		return
	}
	writeJSON(w, 201, map[string]any{"card": c})
	a.hub.Broadcast(c.BoardID, "card:created", map[string]any{"card": c})
}

func (a *api) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "get card")
		return
	}
	if _, err := a.memberBoard(r, c.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "get card")
		return
	}
	writeJSON(w, 200, map[string]any{"card": c})
}

func (a *api) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "update card")
		return
	}
	if _, err := a.memberBoard(r, c.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "update card")
		return
	}
	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		AssigneeID  nullableID `json:"assigneeId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, 400, "title cannot be empty")
		return
	}
	updated, err := a.store.UpdateCard(r.Context(), id, req.Title, req.Description, req.AssigneeID)
	if err != nil {
		a.fail(w, err, "update card")
		return
	}
	writeJSON(w, 200, map[string]any{"card": updated})
	a.hub.Broadcast(updated.BoardID, "card:updated", map[string]any{"card": updated})
}

func (a *api) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "move card")
		return
	}
	// Membership is settled before any position work happens.
	if _, err := a.memberBoard(r, c.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "move card")
		return
	}
	var req struct {
		ToListID   *int64 `json:"toListId"`
		PrevCardID *int64 `json:"prevCardId"`
		NextCardID *int64 `json:"nextCardId"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	moved, err := a.store.MoveCard(r.Context(), id, req.ToListID, req.PrevCardID, req.NextCardID)
	if err != nil {
		a.fail(w, err, "move card")
		return
	}
	writeJSON(w, 200, map[string]any{"card": moved})
	a.hub.Broadcast(moved.BoardID, "card:moved", map[string]any{"card": moved})
}

func (a *api) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	c, err := a.store.GetCard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "delete card")
		return
	}
	if _, err := a.memberBoard(r, c.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "delete card")
		return
	}
	if err := a.store.DeleteCardCascade(r.Context(), id); err != nil {
		a.fail(w, err, "delete card")
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
	a.hub.Broadcast(c.BoardID, "card:deleted", map[string]any{"cardId": c.ID, "listId": c.ListID})
}
