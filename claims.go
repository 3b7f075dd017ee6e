package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	// TokenTypeAccess authorizes requests
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh only mints new token pairs
	TokenTypeRefresh TokenType = "refresh"
)

// AuthClaims exposes the identity facts carried by a token
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Type() TokenType
	Expires() time.Time
	IssuedAt() time.Time
}

// TokenClaims is the concrete implementation of AuthClaims
type TokenClaims struct {
	jwt.RegisteredClaims
	UID       string    `json:"user_id,omitempty"`
	UserEmail string    `json:"email,omitempty"`
	TokenType TokenType `json:"type"`
}

// Verify interface compliance
var _ AuthClaims = (*TokenClaims)(nil)

// Subject returns the subject claim
func (c *TokenClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim
func (c *TokenClaims) Email() string {
	return c.UserEmail
}

// Type returns the access/refresh discriminator
func (c *TokenClaims) Type() TokenType {
	return c.TokenType
}

// TokenID returns the jti claim
func (c *TokenClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *TokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// RemainingLifetime is the time left before the token expires at now.
func (c *TokenClaims) RemainingLifetime(now time.Time) time.Duration {
	exp := c.Expires()
	if exp.IsZero() {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}
