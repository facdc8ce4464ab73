package main

import (
	"net/http"
	"strings"
)

const searchResultCap = 50

type searchResult struct {
	ID          int64  `json:"id"`
	ListID      int64  `json:"listId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GET /api/boards/{id}/search?q=term
func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
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
		a.fail(w, err, "search")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, 200, map[string]any{"results": []searchResult{}})
		return
	}
	cards, err := a.store.SearchCards(r.Context(), id, q, searchResultCap)
	if err != nil {
		a.fail(w, err, "search")
		return
	}
	results := make([]searchResult, 0, len(cards))
	for _, c := range cards {
		results = append(results, searchResult{ID: c.ID, ListID: c.ListID, Title: c.Title, Description: c.Description})
	}
	writeJSON(w, 200, map[string]any{"results": results})
}
