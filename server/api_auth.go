package main

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// token/cookie settings
func (a *api) accessSecret() string      { return getenv("ACCESS_TOKEN_SECRET", "dev-access-secret") }
func (a *api) refreshSecret() string     { return getenv("REFRESH_TOKEN_SECRET", "dev-refresh-secret") }
func (a *api) accessTTL() time.Duration  { return getdur("ACCESS_TOKEN_TTL", 15*time.Minute) }
func (a *api) refreshTTL() time.Duration { return getdur("REFRESH_TOKEN_TTL", 7*24*time.Hour) }
func (a *api) refreshCookieName() string { return getenv("REFRESH_COOKIE_NAME", "tf_refresh") }
func (a *api) secureCookie() bool        { return getenv("COOKIE_SECURE", "false") == "true" }

func (a *api) sameSite() http.SameSite {
	switch strings.ToLower(getenv("COOKIE_SAMESITE", "lax")) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// The rotation credential only travels to the auth endpoints: refresh
// needs it to mint access tokens, logout needs it to revoke.
const refreshCookiePath = "/api/auth"

func (a *api) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.refreshCookieName(),
		Value:    token,
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   a.secureCookie(),
		SameSite: a.sameSite(),
		MaxAge:   int(a.refreshTTL().Seconds()),
	})
}

func (a *api) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.refreshCookieName(),
		Value:    "",
		Path:     refreshCookiePath,
		HttpOnly: true,
		Secure:   a.secureCookie(),
		SameSite: a.sameSite(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// issueTokens signs an access/refresh pair and sets the refresh cookie.
func (a *api) issueTokens(w http.ResponseWriter, u User) (string, error) {
	access, err := signAccessToken(u, a.accessSecret(), a.accessTTL())
	if err != nil {
		return "", err
	}
	refresh, err := signRefreshToken(u, a.refreshSecret(), a.refreshTTL())
	if err != nil {
		return "", err
	}
	a.setRefreshCookie(w, refresh)
	return access, nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Email, Password string }
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if len(req.Username) < 2 || !validEmail(req.Email) {
		writeError(w, 400, "invalid payload")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, 400, "password too short")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.log.Error("bcrypt", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	u, err := a.store.CreateUser(r.Context(), req.Username, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, 409, "email already in use")
			return
		}
		a.fail(w, err, "register")
		return
	}
	access, err := a.issueTokens(w, u)
	if err != nil {
		a.fail(w, err, "sign tokens")
		return
	}
	writeJSON(w, 201, map[string]any{"user": u, "accessToken": access})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if err := readJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	u, err := a.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, 401, "invalid credentials")
			return
		}
		a.fail(w, err, "login")
		return
	}
	access, err := a.issueTokens(w, u)
	if err != nil {
		a.fail(w, err, "sign tokens")
		return
	}
	writeJSON(w, 200, map[string]any{"user": u, "accessToken": access})
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(a.refreshCookieName())
	if err != nil || c.Value == "" {
		writeError(w, 401, "no refresh token")
		return
	}
	claims, err := verifyRefreshToken(c.Value, a.refreshSecret())
	if err != nil {
		writeError(w, 401, "invalid refresh token")
		return
	}
	u, err := a.store.UserByID(r.Context(), claims.UserID())
	if err != nil {
		writeError(w, 401, "invalid refresh token")
		return
	}
	// A stale generation number means the credential was revoked by a
	// logout, regardless of its nominal expiry.
	if u.TokenVersion != claims.TokenVersion {
		writeError(w, 401, "refresh token revoked")
		return
	}
	access, err := a.issueTokens(w, u)
	if err != nil {
		a.fail(w, err, "sign tokens")
		return
	}
	writeJSON(w, 200, map[string]any{"accessToken": access})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(a.refreshCookieName()); err == nil && c.Value != "" {
		if claims, err := verifyRefreshToken(c.Value, a.refreshSecret()); err == nil {
			if err := a.store.BumpTokenVersion(r.Context(), claims.UserID()); err != nil && !errors.Is(err, ErrNotFound) {
				a.log.Error("bump token version", "err", err)
			}
		}
	}
	a.clearRefreshCookie(w)
	writeJSON(w, 200, map[string]any{"success": true})
}
