package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal is the signed-in actor behind a bridge request.
type Principal struct {
	Role        domain.ActorRole
	BearerToken string
}

// SessionSource is the part of the session manager the bridge depends on.
type SessionSource interface {
	BearerToken(ctx context.Context) (string, error)
	Role() domain.ActorRole
}

// SessionMiddleware rejects bridge calls that need a live session.
type SessionMiddleware struct {
	sessions SessionSource
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(sessions SessionSource) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Handle enforces a valid, unexpired session.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	token, err := m.sessions.BearerToken(c.UserContext())
	if err != nil {
		return err
	}
	if token == "" {
		return apperrors.NewAuthFailure("Please sign in to continue.")
	}

	c.Locals(principalKey, &Principal{Role: m.sessions.Role(), BearerToken: token})
	return c.Next()
}

// PrincipalFromContext retrieves the signed-in actor.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
