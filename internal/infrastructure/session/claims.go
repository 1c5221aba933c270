package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a stored token cannot be decoded
var ErrMalformedToken = errors.New("malformed token")

// TokenClaims are the claims the API puts into its access tokens
type TokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    int64  `json:"user_id"`
}

// Claims decodes a token without verifying its signature. The key lives on the
// server; the client only reads the subject and expiry.
func Claims(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the expiry, zero if the token has none
func (c *TokenClaims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Expired reports whether the token expired before now
func (c *TokenClaims) Expired(now time.Time) bool {
	exp := c.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// TTL returns the remaining lifetime, zero when expired or unknown
func (c *TokenClaims) TTL(now time.Time) time.Duration {
	exp := c.ExpiresAt()
	if exp.IsZero() || !now.Before(exp) {
		return 0
	}
	return exp.Sub(now)
}
