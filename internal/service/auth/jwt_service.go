package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService issues and validates the bearer tokens that bind an HTTP client
// to its session.
type JWTService interface {
	// GenerateToken creates a signed token for the given session.
	GenerateToken(ctx context.Context, sessionID uuid.UUID) (string, error)

	// ValidateToken checks the signature and lifetime of a token and returns
	// its claims. Failures are reported as ErrInvalidToken, ErrExpiredToken
	// or ErrTokenNotYetValid.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated content of a session token.
type Claims struct {
	// SessionID is the session the token was issued for.
	SessionID uuid.UUID `json:"sid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
