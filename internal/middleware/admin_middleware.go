package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// AdminTokenHeader carries the shared back-office secret.
const AdminTokenHeader = "x-admin-token"

// AdminRequired is the single authorization predicate for back-office
// routes: it compares the x-admin-token header against the configured
// secret in constant time. Every mutating catalogue route and every
// back-office route goes through this one gate.
func AdminRequired(adminToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(AdminTokenHeader)
		if adminToken == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
