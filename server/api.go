package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type api struct {
	store *Store
	log   *slog.Logger
	hub   *Hub
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

func newAPI(store *Store, log *slog.Logger) *api {
	return &api{store: store, log: log, hub: NewHub(), rl: map[string]*rateBucket{}}
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

func (a *api) allow(ip, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := ip + ":" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	b, ok := a.rl[rk]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{count: 0, resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(r.RemoteAddr, name, max, window) {
			writeError(w, 429, "too many requests")
			return
		}
		next(w, r)
	}
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": msg}})
}

// fail maps store sentinels onto the conventional status codes and logs
// anything unexpected.
func (a *api) fail(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, 404, "not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, 403, "forbidden")
	case errors.Is(err, ErrConflict):
		writeError(w, 409, "conflict")
	case errors.Is(err, ErrValidation):
		writeError(w, 400, err.Error())
	default:
		a.log.Error(op, "err", err)
		writeError(w, 500, "internal error")
	}
}

// currentUser verifies the bearer token on the request. The same
// verification rule backs the realtime handshake in ws.go.
func (a *api) currentUser(r *http.Request) (*accessClaims, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("missing token")
	}
	return verifyAccessToken(strings.TrimPrefix(header, "Bearer "), a.accessSecret())
}

// requireAuth wraps a handler and enforces a valid access token
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.currentUser(r); err != nil {
			writeError(w, 401, "unauthorized")
			return
		}
		next(w, r)
	}
}

// memberBoard loads a board and enforces the membership predicate.
// NotFound outranks Forbidden: an absent board 404s for everyone.
func (a *api) memberBoard(r *http.Request, boardID, userID int64) (Board, error) {
	b, err := a.store.GetBoardWithMembers(r.Context(), boardID)
	if err != nil {
		return Board{}, err
	}
	if !boardAllowsUser(&b, userID) {
		return Board{}, ErrForbidden
	}
	return b, nil
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("POST /api/auth/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/auth/refresh", a.withRateLimit("auth", 60, time.Minute, a.handleRefresh))
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)

	mux.HandleFunc("GET /api/ws", a.handleWS)

	mux.HandleFunc("GET /api/boards", a.requireAuth(a.handleListBoards))
	mux.HandleFunc("POST /api/boards", a.requireAuth(a.handleCreateBoard))
	mux.HandleFunc("GET /api/boards/{id}", a.requireAuth(a.handleGetBoard))
	mux.HandleFunc("PATCH /api/boards/{id}", a.requireAuth(a.handleUpdateBoard))
	mux.HandleFunc("DELETE /api/boards/{id}", a.requireAuth(a.handleDeleteBoard))
	mux.HandleFunc("POST /api/boards/{id}/members", a.requireAuth(a.handleAddMember))
	mux.HandleFunc("DELETE /api/boards/{id}/members/{uid}", a.requireAuth(a.handleRemoveMember))

	mux.HandleFunc("GET /api/boards/{id}/lists", a.requireAuth(a.handleListsByBoard))
	mux.HandleFunc("POST /api/boards/{id}/lists", a.requireAuth(a.handleCreateList))
	mux.HandleFunc("PATCH /api/lists/{id}", a.requireAuth(a.handleUpdateList))
	mux.HandleFunc("DELETE /api/lists/{id}", a.requireAuth(a.handleDeleteList))

	mux.HandleFunc("GET /api/boards/{id}/cards", a.requireAuth(a.handleCardsByBoard))
	mux.HandleFunc("POST /api/lists/{id}/cards", a.requireAuth(a.handleCreateCard))
	mux.HandleFunc("GET /api/cards/{id}", a.requireAuth(a.handleGetCard))
	mux.HandleFunc("PATCH /api/cards/{id}", a.requireAuth(a.handleUpdateCard))
	mux.HandleFunc("PATCH /api/cards/{id}/move", a.requireAuth(a.handleMoveCard))
	mux.HandleFunc("DELETE /api/cards/{id}", a.requireAuth(a.handleDeleteCard))

	mux.HandleFunc("GET /api/boards/{id}/search", a.requireAuth(a.handleSearch))

	mux.HandleFunc("GET /api/cards/{id}/comments", a.requireAuth(a.handleCommentsByCard))
	mux.HandleFunc("POST /api/cards/{id}/comments", a.requireAuth(a.handleAddComment))
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Pass through Hijack so the websocket upgrade works behind the logger.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack unsupported")
	}
	return hj.Hijack()
}
