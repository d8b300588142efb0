package auth

import (
	"strings"

	"warehouse-backend/internal/config"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const CtxSessionKey = "session"

// RequireSession validates the bearer token and stores the Session in c.Locals.
func RequireSession(cfg *config.Config, rev *Revocations) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		s, err := ParseToken(cfg.JWTSecret, strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		if rev != nil && rev.IsRevoked(s.TokenID) {
			return fiber.NewError(fiber.StatusUnauthorized, "session has been logged out")
		}

		c.Locals(CtxSessionKey, s)
		return c.Next()
	}
}

func SessionFrom(c *fiber.Ctx) (Session, bool) {
	s, ok := c.Locals(CtxSessionKey).(Session)
	return s, ok
}

// MustSession is for handlers mounted behind RequireSession.
func MustSession(c *fiber.Ctx) (Session, error) {
	s, ok := SessionFrom(c)
	if !ok {
		return Session{}, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	return s, nil
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok := SessionFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role is missing")
		}

		for _, r := range allowedRoles {
			if r == s.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "you are not allowed to do this")
	}
}

// RequireBranchAccess rejects branch-scoped sessions acting on another branch named by route param.
func RequireBranchAccess(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok := SessionFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role is missing")
		}
		id, err := c.ParamsInt(param)
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid branch id")
		}
		if !s.CanAccessBranch(uint(id)) {
			return fiber.NewError(fiber.StatusForbidden, "no access to this branch")
		}
		return c.Next()
	}
}
