package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thelewala-agent/internal/domain"
	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// RequireRole ensures the signed-in actor has one of the allowed roles.
func RequireRole(allowed ...domain.ActorRole) fiber.Handler {
	allowedSet := make(map[domain.ActorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewAuthFailure("Please sign in to continue.")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden(string(principal.Role) + " sessions cannot use this action")
		}
		return c.Next()
	}
}
