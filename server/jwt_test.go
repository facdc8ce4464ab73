package main

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

var testUser = User{ID: 42, Username: "ada", Email: "ada@example.com", TokenVersion: 3}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := signAccessToken(testUser, "secret", time.Minute)
	assert.Equal(t, err, nil)
	claims, err := verifyAccessToken(tok, "secret")
	assert.Equal(t, err, nil)
	assert.Equal(t, claims.UserID(), int64(42))
	assert.Equal(t, claims.Username, "ada")
	assert.Equal(t, claims.Email, "ada@example.com")
}

func TestAccessTokenWrongSecret(t *testing.T) {
	tok, _ := signAccessToken(testUser, "secret", time.Minute)
	if _, err := verifyAccessToken(tok, "other"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestAccessTokenExpired(t *testing.T) {
	tok, _ := signAccessToken(testUser, "secret", -time.Minute)
	if _, err := verifyAccessToken(tok, "secret"); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestRefreshTokenCarriesGeneration(t *testing.T) {
	tok, err := signRefreshToken(testUser, "secret", time.Hour)
	assert.Equal(t, err, nil)
	claims, err := verifyRefreshToken(tok, "secret")
	assert.Equal(t, err, nil)
	assert.Equal(t, claims.UserID(), int64(42))
	assert.Equal(t, claims.TokenVersion, 3)
}

// Access and refresh tokens use distinct secrets, so one must never
// verify under the other's key.
func TestTokenKindsNotInterchangeable(t *testing.T) {
	access, _ := signAccessToken(testUser, "access-secret", time.Minute)
	if _, err := verifyRefreshToken(access, "refresh-secret"); err == nil {
		t.Fatal("access token verified as refresh token")
	}
}

func TestMalformedTokenRejected(t *testing.T) {
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := verifyAccessToken(tok, "secret"); err == nil {
			t.Fatalf("malformed token %q verified", tok)
		}
	}
}
