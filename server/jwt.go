package main

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Short-lived bearer token carried in the Authorization header and the
// realtime handshake. Verified stateless: signature plus expiry.
type accessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Long-lived rotation credential delivered in an HttpOnly cookie. The tv
// claim pins the token to the user's generation counter so one increment
// invalidates every outstanding refresh token at once.
type refreshClaims struct {
	TokenVersion int `json:"tv"`
	jwt.RegisteredClaims
}

func (c *accessClaims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

func (c *refreshClaims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

func signAccessToken(u User, secret string, ttl time.Duration) (string, error) {
	claims := &accessClaims{
		Username: u.Username,
		Email:    u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func signRefreshToken(u User, secret string, ttl time.Duration) (string, error) {
	claims := &refreshClaims{
		TokenVersion: u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func verifyAccessToken(token, secret string) (*accessClaims, error) {
	claims := &accessClaims{}
	if err := parseHS256(token, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func verifyRefreshToken(token, secret string) (*refreshClaims, error) {
	claims := &refreshClaims{}
	if err := parseHS256(token, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseHS256(token, secret string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}
