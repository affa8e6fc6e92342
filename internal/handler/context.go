package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/notehub/gatekeeper/internal/domain"
)

const userContextKey = "user"

func SetUserInContext(c *fiber.Ctx, user *domain.User) {
	c.Locals(userContextKey, user)
}

func GetUserFromContext(c *fiber.Ctx) *domain.User {
	user, ok := c.Locals(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetPrincipal returns the authenticated principal, or nil on public routes.
func GetPrincipal(c *fiber.Ctx) domain.Principal {
	if user := GetUserFromContext(c); user != nil {
		return user
	}
	return nil
}
