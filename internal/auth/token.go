package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims describes the parts of a discovery service access token the agent reads.
type Claims struct {
	Role     string `json:"role,omitempty"`
	UserType string `json:"userType,omitempty"`
	jwt.RegisteredClaims
}

// TokenInspector reads access token claims without verifying the signature.
// The agent never holds the signing secret; the server remains the authority
// and these claims only drive local expiry bookkeeping.
type TokenInspector struct {
	parser *jwt.Parser
}

// NewTokenInspector builds an inspector.
func NewTokenInspector() *TokenInspector {
	return &TokenInspector{parser: jwt.NewParser()}
}

// Inspect decodes the token claims.
func (ti *TokenInspector) Inspect(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	if _, _, err := ti.parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiryOf returns the exp claim, if the token is a JWT carrying one.
func (ti *TokenInspector) ExpiryOf(token string) (time.Time, bool) {
	claims, err := ti.Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
