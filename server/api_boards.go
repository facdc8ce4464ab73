package main

import (
	"net/http"
	"strings"
)

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	u, err := a.currentUser(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	boards, err := a.store.BoardsForUser(r.Context(), u.UserID())
	if err != nil {
		a.fail(w, err, "list boards")
		return
	}
	writeJSON(w, 200, map[string]any{"boards": boards})
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	u, err := a.currentUser(r)
	if err != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeError(w, 400, "title is required")
		return
	}
	b, err := a.store.CreateBoard(r.Context(), u.UserID(), strings.TrimSpace(req.Title))
	if err != nil {
		a.fail(w, err, "create board")
		return
	}
	writeJSON(w, 201, map[string]any{"board": b})
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request) {
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
	b, err := a.memberBoard(r, id, u.UserID())
	if err != nil {
		a.fail(w, err, "get board")
		return
	}
	writeJSON(w, 200, map[string]any{"board": b})
}

func (a *api) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
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
	b, err := a.memberBoard(r, id, u.UserID())
	if err != nil {
		a.fail(w, err, "update board")
		return
	}
	var req struct {
		Title    *string `json:"title"`
		Archived *bool   `json:"archived"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			writeError(w, 400, "title cannot be empty")
			return
		}
		req.Title = &t
	}
	// Archiving is an owner decision; renames are open to members.
	if req.Archived != nil && b.OwnerID != u.UserID() {
		writeError(w, 403, "forbidden")
		return
	}
	updated, err := a.store.UpdateBoard(r.Context(), id, req.Title, req.Archived)
	if err != nil {
		a.fail(w, err, "update board")
		return
	}
	writeJSON(w, 200, map[string]any{"board": updated})
}

func (a *api) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
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
	b, err := a.memberBoard(r, id, u.UserID())
	if err != nil {
		a.fail(w, err, "delete board")
		return
	}
	if b.OwnerID != u.UserID() {
		writeError(w, 403, "only owner can delete")
		return
	}
	lists, cards, err := a.store.DeleteBoardCascade(r.Context(), id)
	if err != nil {
		a.fail(w, err, "delete board")
		return
	}
	writeJSON(w, 200, map[string]any{"deleted": map[string]int64{"lists": lists, "cards": cards}})
}

func (a *api) handleAddMember(w http.ResponseWriter, r *http.Request) {
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
	b, err := a.memberBoard(r, id, u.UserID())
	if err != nil {
		a.fail(w, err, "add member")
		return
	}
	if b.OwnerID != u.UserID() {
		writeError(w, 403, "only owner can manage members")
		return
	}
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := readJSON(w, r, &req); err != nil || req.UserID == 0 {
		writeError(w, 400, "invalid payload")
		return
	}
	if err := a.store.AddBoardMember(r.Context(), id, req.UserID); err != nil {
		a.fail(w, err, "add member")
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
}

func (a *api) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	uid, err := parseID(r.PathValue("uid"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, errU := a.currentUser(r)
	if errU != nil {
		writeError(w, 401, "unauthorized")
		return
	}
	b, err := a.memberBoard(r, id, u.UserID())
	if err != nil {
		a.fail(w, err, "remove member")
		return
	}
	if b.OwnerID != u.UserID() {
		writeError(w, 403, "only owner can manage members")
		return
	}
	if uid == b.OwnerID {
		writeError(w, 400, "cannot remove the owner")
		return
	}
	if err := a.store.RemoveBoardMember(r.Context(), id, uid); err != nil {
		a.fail(w, err, "remove member")
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
}
