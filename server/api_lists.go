package main

import (
	"net/http"
	"strings"
)

func (a *api) handleListsByBoard(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "lists by board")
		return
	}
	lists, err := a.store.ListsByBoard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "lists by board")
		return
	}
	writeJSON(w, 200, map[string]any{"lists": lists})
}

func (a *api) handleCreateList(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "create list")
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeError(w, 400, "title is required")
		return
	}
	l, err := a.store.CreateList(r.Context(), id, strings.TrimSpace(req.Title))
	if err != nil {
		a.fail(w, err, "create list")
		return
	}
	writeJSON(w, 201, map[string]any{"list": l})
	a.hub.Broadcast(l.BoardID, "list:created", map[string]any{"list": l})
}

func (a *api) handleUpdateList(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "update list")
		return
	}
	if _, err := a.memberBoard(r, l.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "update list")
		return
	}
	var req struct {
		Title    *string  `json:"title"`
		Position *float64 `json:"position"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Title == nil && req.Position == nil {
		writeError(w, 400, "nothing to update")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, 400, "title cannot be empty")
		return
	}
	if req.Position != nil && !isFinite(*req.Position) {
		writeError(w, 400, "position must be finite")
		return
	}
	updated, err := a.store.UpdateList(r.Context(), id, req.Title, req.Position)
	if err != nil {
		a.fail(w, err, "update list")
		return
	}
	writeJSON(w, 200, map[string]any{"list": updated})
	a.hub.Broadcast(updated.BoardID, "list:updated", map[string]any{"list": updated})
}

func (a *api) handleDeleteList(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "delete list")
		return
	}
	if _, err := a.memberBoard(r, l.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "delete list")
		return
	}
	cards, err := a.store.DeleteListCascade(r.Context(), id)
	if err != nil {
		a.fail(w, err, "delete list")
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "deleted": map[string]int64{"cards": cards}})
	a.hub.Broadcast(l.BoardID, "list:deleted", map[string]any{"listId": id})
}
