// Package auth keeps the signed-in state of browser users.
//
// The browser only holds an opaque session cookie. The bearer token issued
// by the invoice API stays on the server in a Store, keyed by session ID.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the fixed name of the session cookie.
const CookieName = "invoicedesk_session"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMissingCredentials = errors.New("username and password are required")
)

// Session binds a browser to an API bearer token.
type Session struct {
	ID        string
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions. Get returns ErrSessionNotFound for missing and
// expired sessions alike.
type Store interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions that expired before now and reports
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// tokenExpiry reads the exp claim of a JWT without verifying it. The API
// owns the signing key; the claim only caps how long a session is kept.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
