package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is what the client can learn from its own access token. The
// signature is not checked here; the server does that on every request.
type Session struct {
	Token     string
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// ParseSession reads sub/exp from a JWT access token without verifying it.
// Opaque (non-JWT) tokens are accepted as-is with no subject or expiry.
func ParseSession(token string) (Session, error) {
	s := Session{Token: token}
	if token == "" {
		return s, nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return s, nil
		}
		return s, fmt.Errorf("parse session token: %w", err)
	}
	if sub, err := claims.GetSubject(); err == nil {
		s.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

// Expired reports whether the token's exp claim is at or before now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Key identifies the session for logs and rate-limit buckets.
func (s Session) Key() string {
	if s.Subject != "" {
		return s.Subject
	}
	return "anonymous"
}
