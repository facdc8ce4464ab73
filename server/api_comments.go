package main

import (
	"net/http"
	"strings"
)

func (a *api) handleCommentsByCard(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "comments by card")
		return
	}
	if _, err := a.memberBoard(r, c.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "comments by card")
		return
	}
	comments, err := a.store.CommentsByCard(r.Context(), id)
	if err != nil {
		a.fail(w, err, "comments by card")
		return
	}
	writeJSON(w, 200, map[string]any{"comments": comments})
}

func (a *api) handleAddComment(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "add comment")
		return
	}
	if _, err := a.memberBoard(r, c.BoardID, u.UserID()); err != nil {
		a.fail(w, err, "add comment")
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Body) == "" {
		writeError(w, 400, "body is required")
		return
	}
	comment, err := a.store.AddComment(r.Context(), c.BoardID, id, u.UserID(), req.Body)
	if err != nil {
		a.fail(w, err, "add comment")
		return
	}
	writeJSON(w, 201, map[string]any{"comment": comment})
}
